package scanning

import (
	"context"
	"time"

	"github.com/zombor/kakeibo/internal/logger"
	"github.com/zombor/kakeibo/internal/metrics"
)

type instrumented struct {
	Scanner
	name string
}

// Instrument wraps a Scanner so every call is timed, counted and logged.
func Instrument(name string, s Scanner) Scanner {
	return &instrumented{Scanner: s, name: name}
}

func (i *instrumented) ScanReceipt(ctx context.Context, imageData []byte, contentType string) (*ReceiptData, error) {
	start := time.Now()
	data, err := i.Scanner.ScanReceipt(ctx, imageData, contentType)
	elapsed := time.Since(start)
	metrics.ObserveScan(elapsed, err)

	if err != nil {
		logger.Log.Error().
			Err(err).
			Str("scanner", i.name).
			Str("content_type", contentType).
			Int("file_size", len(imageData)).
			Dur("elapsed", elapsed).
			Msg("Failed to scan receipt")
		return nil, err
	}

	logger.Log.Debug().
		Str("scanner", i.name).
		Str("merchant", logger.Redact(data.Merchant)).
		Int("items", len(data.Items)).
		Dur("elapsed", elapsed).
		Msg("Scanned receipt")
	return data, nil
}
