package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pt-nexus/webgate/internal/client"
)

// NewRequestCmd creates the request command
func NewRequestCmd(g *Globals, opts ...Option) *cobra.Command {
	var data string
	var raw bool

	cmd := &cobra.Command{
		Use:   "request METHOD PATH",
		Short: "Send an authenticated JSON request through the gateway",
		Long: `Send a JSON request through the gateway with the stored session token.

When the backend answers 401 outside /api/auth/, the current page is replaced
by the login page so the next login returns to it.

With --raw the request is sent as a plain HTTP request and the response body
is streamed unchanged.

Examples:
  $ webgate request GET /api/info
  $ webgate request POST /api/sites --data '{"site":"example"}'
  $ webgate request GET /api/torrents/export --raw > torrents.csv`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := NewEnv(g, append(opts, WithOutput(cmd.OutOrStdout()))...)
			if err != nil {
				return err
			}
			defer env.Close()

			if raw {
				return runRawRequest(cmd.Context(), env, args[0], args[1], data)
			}
			return runRequest(cmd.Context(), env, args[0], args[1], data)
		},
	}

	cmd.Flags().StringVarP(&data, "data", "d", "", "JSON request body")
	cmd.Flags().BoolVar(&raw, "raw", false, "Send a plain HTTP request and stream the response body")

	return cmd
}

func runRequest(ctx context.Context, env *Env, method, path, data string) error {
	method = strings.ToUpper(method)

	var in any
	if data != "" {
		if !json.Valid([]byte(data)) {
			return fmt.Errorf("--data is not valid JSON")
		}
		in = json.RawMessage(data)
	}

	var out json.RawMessage
	err := env.client.Do(ctx, method, path, in, &out)
	if err != nil {
		var respErr *client.ResponseError
		if errors.As(err, &respErr) && respErr.Redirected {
			env.printf("Redirected to %s\n", env.router.Current().FullPath())
		}
		return err
	}

	if len(out) == 0 {
		return nil
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, out, "", "  "); err != nil {
		env.printf("%s\n", out)
		return nil
	}
	env.printf("%s\n", pretty.String())
	return nil
}

// runRawRequest sends the request through the session's RoundTripper and
// copies the body to the output as it arrives.
func runRawRequest(ctx context.Context, env *Env, method, path, data string) error {
	method = strings.ToUpper(method)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	var body io.Reader
	if data != "" {
		body = strings.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, env.serverURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if data != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	before := env.router.Current().FullPath()

	resp, err := client.NewHTTPClient(env.session, nil).Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if _, err := io.Copy(env.out, resp.Body); err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		after := env.router.Current().FullPath()
		if after != before {
			env.printf("\nRedirected to %s\n", after)
		}
		return &client.ResponseError{
			Method:     method,
			Path:       req.URL.Path,
			StatusCode: resp.StatusCode,
			Redirected: after != before,
		}
	}
	return nil
}
