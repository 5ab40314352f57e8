// Command web serves the report pipeline over HTTP: uploads in, processed
// jobs and finished workbooks out.
package main

import (
	"log/slog"
	"os"

	"ledgerage/internal/app"
)

func main() {
	application, err := app.New()
	if err != nil {
		slog.Error("failed to initialize application", "error", err)
		os.Exit(1)
	}
	if err := application.Run(); err != nil {
		application.Logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}
