package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"mediaqa/storage"
)

const shutdownGrace = 10 * time.Second

// Serve runs srv until ctx is cancelled or the listener fails, then drains
// in-flight requests and closes the store.
func Serve(ctx context.Context, srv *http.Server, store storage.VectorStore) error {
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	var err error
	select {
	case err = <-errCh:
	case <-ctx.Done():
		log.Printf("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		err = srv.Shutdown(shutdownCtx)
		cancel()
		if serveErr := <-errCh; err == nil && !errors.Is(serveErr, http.ErrServerClosed) {
			err = serveErr
		}
	}

	if cerr := store.Close(context.Background()); cerr != nil {
		log.Printf("store close: %v", cerr)
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
