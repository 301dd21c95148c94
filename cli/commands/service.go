package commands

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/singlebase/singlebase-go/core"
)

var serviceDescriptions = map[core.Service]string{
	core.ServiceDB:       "Query and modify collections",
	core.ServiceAuth:     "Authentication actions (signin, nonce, ...)",
	core.ServiceStorage:  "File storage actions",
	core.ServiceGenAI:    "Generative AI actions (summarize, gentext, qna, ...)",
	core.ServiceVectorDB: "Vector database actions",
}

// payloadFlags holds --payload and --payload-file.
type payloadFlags struct {
	inline string
	file   string
}

func (p *payloadFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&p.inline, "payload", "p", "", "request payload as a JSON object")
	cmd.Flags().StringVarP(&p.file, "payload-file", "f", "", "read the JSON payload from a file ('-' for stdin)")
	cmd.MarkFlagsMutuallyExclusive("payload", "payload-file")
}

// read decodes the payload. No flag yields a nil payload.
func (p *payloadFlags) read(stdin io.Reader) (core.Payload, error) {
	var data []byte
	switch {
	case p.inline != "":
		data = []byte(p.inline)
	case p.file == "-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read payload from stdin: %w", err)
		}
		data = b
	case p.file != "":
		b, err := os.ReadFile(p.file)
		if err != nil {
			return nil, fmt.Errorf("read payload file: %w", err)
		}
		data = b
	default:
		return nil, nil
	}
	return decodePayload(data)
}

func decodePayload(data []byte) (core.Payload, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var payload core.Payload
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("payload must be a JSON object: %w", err)
	}
	if dec.More() {
		return nil, errors.New("payload must be a single JSON object")
	}
	return payload, nil
}

// parseMatches turns key=value pairs into a match map. Values that parse as
// JSON (numbers, booleans, null, quoted strings) keep their type.
func parseMatches(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	m := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid --match %q: want key=value", pair)
		}
		var v any
		dec := json.NewDecoder(strings.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&v); err != nil || dec.More() {
			v = raw
		}
		m[key] = v
	}
	return m, nil
}

func (a *App) newRequestCommand() *cobra.Command {
	var payload payloadFlags

	cmd := &cobra.Command{
		Use:   "request",
		Short: "Send a raw request payload",
		Long: `Send a payload verbatim. The payload must include an "action"; it may
name the service inline ("db.fetch") or carry "service" and "collection"
keys.

Examples:
  singlebase request -p '{"action":"db.fetch","collection":"articles"}'
  singlebase request -f query.json --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := payload.read(a.stdin)
			if err != nil {
				return exitWithCode(ExitValidation, err)
			}

			client, err := a.client()
			if err != nil {
				return err
			}

			res, err := client.Request(cmd.Context(), p)
			if err != nil {
				return exitWithCode(ExitValidation, err)
			}
			return a.printResult(res)
		},
	}
	payload.register(cmd)
	return cmd
}

func (a *App) newServiceCommand(svc core.Service) *cobra.Command {
	var (
		payload    payloadFlags
		collection string
		matches    []string
	)

	use := string(svc) + " <action>"
	example := fmt.Sprintf("  singlebase %s <action> -p '{...}'", svc)
	if svc == core.ServiceDB {
		example = `  singlebase db fetch --collection articles --match status=published
  singlebase db insert -c articles -p '{"data":{"title":"Hello"}}'
  singlebase db count -c articles --json`
	}

	cmd := &cobra.Command{
		Use:     use,
		Short:   serviceDescriptions[svc],
		Example: example,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			action := args[0]

			p, err := payload.read(a.stdin)
			if err != nil {
				return exitWithCode(ExitValidation, err)
			}

			client, err := a.client()
			if err != nil {
				return err
			}

			var res core.Result
			if svc == core.ServiceDB {
				m, err := parseMatches(matches)
				if err != nil {
					return exitWithCode(ExitValidation, err)
				}
				res, err = client.Collection(collection).Matches(m).Do(cmd.Context(), action, p)
				if err != nil {
					return exitWithCode(ExitValidation, err)
				}
			} else {
				env, err := core.BuildEnvelope(svc, action, "", p)
				if err != nil {
					return exitWithCode(ExitValidation, err)
				}
				res, err = client.Dispatch(cmd.Context(), env)
				if err != nil {
					return exitWithCode(ExitValidation, err)
				}
			}
			return a.printResult(res)
		},
	}

	payload.register(cmd)
	if svc == core.ServiceDB {
		cmd.Flags().StringVarP(&collection, "collection", "c", "", "collection name (required)")
		cmd.Flags().StringArrayVarP(&matches, "match", "m", nil, "match condition key=value, repeatable")
		_ = cmd.MarkFlagRequired("collection")
	}
	return cmd
}
