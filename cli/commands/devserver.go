package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/singlebase/singlebase-go/internal/fakebackend"
)

func (a *App) newDevServerCommand() *cobra.Command {
	var (
		addr     string
		apiKey   string
		delay    time.Duration
		seedFile string
	)

	cmd := &cobra.Command{
		Use:   "devserver",
		Short: "Run an in-memory Singlebase backend for local development",
		Long: `Run an in-memory backend that speaks the Singlebase request protocol.

Supports db insert, fetch, count, update, upsert, delete, archive and
restore with equality matches; auth nonce and signin; storage, genai and
vectordb requests are echoed back. Data is lost when the server stops.

The seed file is a JSON object mapping collection names to arrays of records.

Example:
  singlebase devserver --addr 127.0.0.1:8080 --api-key dev
  singlebase --api-url http://127.0.0.1:8080 db fetch -c articles`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			srv := fakebackend.New(
				fakebackend.WithAPIKey(apiKey),
				fakebackend.WithDelay(delay),
				fakebackend.WithLogger(a.logger.Named("devserver")),
			)
			if seedFile != "" {
				n, err := seedServer(srv, seedFile)
				if err != nil {
					return exitWithCode(ExitValidation, err)
				}
				a.logger.Info("seeded collections", zap.String("file", seedFile), zap.Int("records", n))
			}

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start(addr) }()

			fmt.Fprintf(a.stdout, "Singlebase dev backend listening on http://%s\n", addr)
			if apiKey == "" {
				fmt.Fprintln(a.stdout, "  access key check disabled (use --api-key to enable)")
			}

			select {
			case <-cmd.Context().Done():
				if err := srv.Close(); err != nil {
					return err
				}
				<-errCh
				return nil
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return exitWithCode(ExitNetwork, err)
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "accepted access key (empty disables the check)")
	cmd.Flags().DurationVar(&delay, "delay", 0, "artificial delay before every response")
	cmd.Flags().StringVar(&seedFile, "seed", "", "JSON file with initial records per collection")
	return cmd
}

// seedServer loads {"collection": [records...]} into srv and returns the
// number of records inserted.
func seedServer(srv *fakebackend.Server, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read seed file: %w", err)
	}

	var seed map[string][]map[string]any
	if err := json.Unmarshal(data, &seed); err != nil {
		return 0, fmt.Errorf("seed file must map collection names to arrays of objects: %w", err)
	}

	names := make([]string, 0, len(seed))
	for name := range seed {
		names = append(names, name)
	}
	sort.Strings(names)

	total := 0
	for _, name := range names {
		if err := srv.Seed(name, seed[name]...); err != nil {
			return total, fmt.Errorf("seed %s: %w", name, err)
		}
		total += len(seed[name])
	}
	return total, nil
}
