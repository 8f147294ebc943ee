package main

import (
	"context"
	"os"

	zlog "github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

func main() {
	decimal.MarshalJSONWithoutQuotes = true

	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		zlog.Error().Err(err).Msg("orders-service exited with error")
		os.Exit(1)
	}
}
