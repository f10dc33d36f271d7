package driver

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/piwi3910/nebulaec/internal/metrics"
)

// instrumented decorates a Driver with Prometheus metrics and debug logging.
type instrumented struct {
	Driver
	name string
}

// Instrument wraps d so that every call is recorded under the given driver name.
func Instrument(d Driver, name string) Driver {
	return &instrumented{Driver: d, name: name}
}

func (i *instrumented) record(op string, start time.Time, err error) {
	metrics.RecordDriverOperation(i.name, op, err, time.Since(start))
	if err != nil {
		log.Debug().Err(err).Str("driver", i.name).Str("operation", op).Msg("Driver operation failed")
	}
}

func (i *instrumented) Encode(data []byte) ([][]byte, error) {
	start := time.Now()
	fragments, err := i.Driver.Encode(data)
	i.record("encode", start, err)
	if err == nil {
		metrics.AddBytesEncoded(i.name, len(data))
	}

	return fragments, err
}

func (i *instrumented) Decode(fragments [][]byte) ([]byte, error) {
	start := time.Now()
	data, err := i.Driver.Decode(fragments)
	i.record("decode", start, err)
	if err == nil {
		metrics.AddBytesDecoded(i.name, len(data))
	}

	return data, err
}

func (i *instrumented) Reconstruct(ctx context.Context, fragments [][]byte, indexes []int) ([][]byte, error) {
	start := time.Now()
	out, err := i.Driver.Reconstruct(ctx, fragments, indexes)
	i.record("reconstruct", start, err)
	if err == nil {
		metrics.AddFragmentsReconstructed(i.name, len(out))
	}

	return out, err
}

func (i *instrumented) FragmentsNeeded(missing []int) ([]int, error) {
	start := time.Now()
	needed, err := i.Driver.FragmentsNeeded(missing)
	i.record("fragments_needed", start, err)

	return needed, err
}

func (i *instrumented) VerifyStripeMetadata(metadata [][]byte) (bool, error) {
	start := time.Now()
	ok, err := i.Driver.VerifyStripeMetadata(metadata)
	i.record("verify_stripe_metadata", start, err)

	return ok, err
}
