package views

import (
	"context"

	"github.com/AdamBeresnev/dbc-bracket/internal/middleware"
	"github.com/AdamBeresnev/dbc-bracket/internal/operator"
)

func GetOperator(ctx context.Context) *operator.Operator {
	return middleware.GetAuthenticatedOperator(ctx)
}
