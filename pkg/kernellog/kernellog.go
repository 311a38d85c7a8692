// Package kernellog wires structured logging around the kernel for the
// demo harness. The kernel itself does no I/O (it has no logger field),
// so this package wraps calls from the outside the way zmux-server's
// Gin middleware wraps request handling: log the call, the client, and
// whether it poisoned the kernel, using zap fields rather than
// formatted strings.
package kernellog

import (
	"time"

	"go.uber.org/zap"

	"github.com/sharedmap/kernel/pkg/mapkernel"
)

// New returns a development logger in the same configuration the
// corpus's Gin server builds at startup.
func New() *zap.Logger {
	return zap.Must(zap.NewDevelopmentConfig().Build())
}

// WrapSubmit logs a submit-path call, its latency, and whether it
// failed.
func WrapSubmit(log *zap.Logger, clientID string, op mapkernel.Op, fn func() error) error {
	start := time.Now()
	err := fn()
	fields := []zap.Field{
		zap.String("client_id", clientID),
		zap.String("op", string(op.Type)),
		zap.String("key", op.Key),
		zap.Duration("latency", time.Since(start)),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
		log.Error("submit failed", fields...)
		return err
	}
	log.Debug("submit ok", fields...)
	return nil
}

// WrapProcess logs an inbound-delivery call the same way, including the
// sequence number once known.
func WrapProcess(log *zap.Logger, clientID string, msg mapkernel.SequencedMessage, local bool, fn func() (bool, error)) (bool, error) {
	start := time.Now()
	handled, err := fn()
	fields := []zap.Field{
		zap.String("client_id", clientID),
		zap.String("op", string(msg.Contents.Type)),
		zap.String("key", msg.Contents.Key),
		zap.Uint64("seq", msg.SequenceNumber),
		zap.Bool("local", local),
		zap.Bool("handled", handled),
		zap.Duration("latency", time.Since(start)),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
		log.Error("process failed, kernel poisoned", fields...)
		return handled, err
	}
	log.Debug("process ok", fields...)
	return handled, err
}
