package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/osvaldoandrade/zumo/pkg/identity"
	"github.com/osvaldoandrade/zumo/pkg/tokenexchange"
	"github.com/spf13/cobra"
)

func identityCmd(g *globals, ui *ui) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "identity",
		Short: "Query provider credentials from the token service",
	}

	var (
		provider string
		session  string
		api      string
		timeout  time.Duration
	)
	fetch := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch the provider token held for a session",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := identity.ParseProvider(provider)
			if err != nil {
				return err
			}
			session = firstNonEmpty(session, g.session)
			if strings.TrimSpace(session) == "" {
				return errors.New("--session-token is required")
			}
			if strings.TrimSpace(g.baseURL) == "" {
				return errors.New("--base-url is required (or set EMA_RUNTIME_URL)")
			}
			client, err := tokenexchange.NewClient(tokenexchange.Config{
				BaseURL: g.baseURL,
				API:     tokenexchange.API(api),
				Timeout: timeout,
			})
			if err != nil {
				return err
			}

			sp := spinner.New(spinner.CharSets[14], 120*time.Millisecond)
			sp.Suffix = " fetching " + name + " token"
			sp.Start()
			entry, err := client.FetchProviderToken(context.Background(), session, name)
			sp.Stop()
			if err != nil {
				if code := tokenexchange.StatusCode(err); code != 0 {
					return fmt.Errorf("token service returned %d: %w", code, err)
				}
				return err
			}
			if !tokenexchange.IsValid(entry) {
				if entry != nil && entry.Diagnostics != "" {
					fmt.Printf("%s %s\n", ui.warn("[DIAGNOSTICS]"), entry.Diagnostics)
				}
				return fmt.Errorf("no %s credentials for this session", name)
			}
			creds, err := identity.Populate(entry, name)
			if err != nil {
				return err
			}
			fmt.Printf("%s %s credentials for %s\n", ui.ok("[OK]"), name, creds.Base().UserID)
			return printJSON(creds)
		},
	}
	fetch.Flags().StringVar(&provider, "provider", "", "Provider (facebook, google, microsoftaccount, aad, twitter)")
	fetch.Flags().StringVar(&session, "session-token", "", "Session token (default: $ZUMO_SESSION_TOKEN or profile)")
	fetch.Flags().StringVar(&api, "api", string(tokenexchange.APIAuthMe), "Token endpoint (authMe or apiTokens)")
	fetch.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Request timeout")
	_ = fetch.MarkFlagRequired("provider")
	cmd.AddCommand(fetch)
	return cmd
}
