package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/osvaldoandrade/zumo/pkg/auth"
	"github.com/osvaldoandrade/zumo/pkg/token"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

// claimAliases lets --claim use short names for the well-known claim types.
var claimAliases = map[string]string{
	"nameid": auth.ClaimTypeNameIdentifier,
	"name":   auth.ClaimTypeName,
	"email":  auth.ClaimTypeEmail,
	"role":   auth.ClaimTypeRole,
	"oid":    auth.ClaimTypeObjectID,
	"tid":    auth.ClaimTypeTenantID,
}

func tokenCmd(g *globals, ui *ui) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Create and inspect session tokens",
	}
	cmd.AddCommand(tokenCreateCmd(g, ui))
	cmd.AddCommand(tokenValidateCmd(g, ui))
	cmd.AddCommand(tokenDecodeCmd(g, ui))
	cmd.AddCommand(tokenCheckFileCmd(g, ui))
	return cmd
}

func (g *globals) codec(skew time.Duration) *token.Codec {
	return token.NewCodec(
		token.WithIssuer(g.issuer),
		token.WithAudience(g.audience),
		token.WithClockSkew(skew),
	)
}

func tokenCreateCmd(g *globals, ui *ui) *cobra.Command {
	var (
		userID   string
		claims   []string
		lifetime time.Duration
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Sign a new session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseClaims(claims)
			if err != nil {
				return err
			}
			if userID != "" {
				if _, _, ok := auth.ParseUserID(userID); !ok {
					return fmt.Errorf("user id must have the form provider:id, got %q", userID)
				}
				parsed = append(parsed, auth.Claim{Type: auth.ClaimTypeNameIdentifier, Value: userID})
			}
			if len(parsed) == 0 {
				return errors.New("at least one --claim or --user-id is required")
			}
			secret, err := g.signingKey()
			if err != nil {
				return err
			}

			var life *time.Duration
			if lifetime > 0 {
				life = token.Lifetime(lifetime)
			}
			tok, err := g.codec(token.DefaultClockSkew).CreateToken(parsed, life, secret)
			if err != nil {
				return err
			}

			if asJSON {
				out := map[string]any{
					"token":     tok.Raw,
					"issuer":    tok.Issuer,
					"audience":  tok.Audience,
					"notBefore": tok.NotBefore,
				}
				if tok.Expires != nil {
					out["expires"] = *tok.Expires
				}
				return printJSON(out)
			}
			fmt.Println(tok.Raw)
			if tok.Expires != nil {
				fmt.Fprintf(os.Stderr, "%s expires %s\n", ui.dim("[INFO]"), tok.Expires.Format(time.RFC3339))
			} else {
				fmt.Fprintf(os.Stderr, "%s token has no expiry\n", ui.warn("[WARN]"))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user-id", "", "User id (provider:id) written as the uid claim")
	cmd.Flags().StringArrayVar(&claims, "claim", nil, "Claim as type=value (repeatable; short names: nameid, name, email, role, oid, tid)")
	cmd.Flags().DurationVar(&lifetime, "lifetime", 30*24*time.Hour, "Token lifetime (0 for no expiry)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print token details as JSON")
	return cmd
}

func tokenValidateCmd(g *globals, ui *ui) *cobra.Command {
	var skew time.Duration
	cmd := &cobra.Command{
		Use:   "validate <token>",
		Short: "Verify a token's signature, issuer, audience and lifetime",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := g.signingKey()
			if err != nil {
				return err
			}
			c := g.codec(skew)
			claims, err := c.Validate(strings.TrimSpace(args[0]), c.Audience(), c.Issuer(), secret)
			if err != nil {
				fmt.Printf("%s %s: %v\n", ui.err("[INVALID]"), token.Reason(err), err)
				return errors.New("token validation failed")
			}
			fmt.Printf("%s token is valid\n", ui.ok("[OK]"))
			printClaims(ui, claims)
			return nil
		},
	}
	cmd.Flags().DurationVar(&skew, "clock-skew", token.DefaultClockSkew, "Allowed clock skew")
	return cmd
}

func tokenDecodeCmd(g *globals, ui *ui) *cobra.Command {
	var skew time.Duration
	cmd := &cobra.Command{
		Use:   "decode <token>",
		Short: "Decode a token without verifying its signature",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := g.codec(skew)
			claims, err := c.ParsePrevalidated(strings.TrimSpace(args[0]), c.Audience(), c.Issuer())
			if err != nil {
				fmt.Printf("%s %s: %v\n", ui.err("[INVALID]"), token.Reason(err), err)
				return errors.New("token decode failed")
			}
			fmt.Printf("%s decoded %s\n", ui.ok("[OK]"), ui.dim("(signature not verified)"))
			printClaims(ui, claims)
			return nil
		},
	}
	cmd.Flags().DurationVar(&skew, "clock-skew", token.DefaultClockSkew, "Allowed clock skew")
	return cmd
}

func tokenCheckFileCmd(g *globals, ui *ui) *cobra.Command {
	var skew time.Duration
	cmd := &cobra.Command{
		Use:   "check-file <path>",
		Short: "Validate every token in a file (one per line)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tokens, err := readTokenLines(args[0])
			if err != nil {
				return err
			}
			if len(tokens) == 0 {
				fmt.Printf("%s no tokens in %s\n", ui.warn("[WARN]"), args[0])
				return nil
			}
			secret, err := g.signingKey()
			if err != nil {
				return err
			}

			c := g.codec(skew)
			bar := progressbar.NewOptions(len(tokens),
				progressbar.OptionSetDescription("validating"),
				progressbar.OptionSetWidth(18),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
			results := checkTokens(c, tokens, secret, func() { _ = bar.Add(1) })
			_ = bar.Finish()

			fmt.Println(ui.title("Results"))
			for _, r := range sortedReasons(results) {
				label := ui.err(r.reason)
				if r.reason == "valid" {
					label = ui.ok(r.reason)
				}
				fmt.Printf("  %-16s %d\n", label, r.count)
			}
			if results["valid"] != len(tokens) {
				return fmt.Errorf("%d of %d tokens failed validation", len(tokens)-results["valid"], len(tokens))
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&skew, "clock-skew", token.DefaultClockSkew, "Allowed clock skew")
	return cmd
}

// parseClaims turns type=value pairs into claims, expanding short names.
func parseClaims(raw []string) ([]auth.Claim, error) {
	claims := make([]auth.Claim, 0, len(raw))
	for _, kv := range raw {
		typ, val, ok := strings.Cut(kv, "=")
		typ = strings.TrimSpace(typ)
		if !ok || typ == "" {
			return nil, fmt.Errorf("invalid claim %q (expected type=value)", kv)
		}
		if long, found := claimAliases[strings.ToLower(typ)]; found {
			typ = long
		}
		claims = append(claims, auth.Claim{Type: typ, Value: val})
	}
	return claims, nil
}

func readTokenLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var tokens []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		tokens = append(tokens, line)
	}
	return tokens, sc.Err()
}

// checkTokens validates each token and counts results by reason label.
func checkTokens(c *token.Codec, tokens []string, secret string, step func()) map[string]int {
	results := map[string]int{}
	for _, raw := range tokens {
		_, err := c.Validate(raw, c.Audience(), c.Issuer(), secret)
		results[token.Reason(err)]++
		if step != nil {
			step()
		}
	}
	return results
}

type reasonCount struct {
	reason string
	count  int
}

func sortedReasons(results map[string]int) []reasonCount {
	out := make([]reasonCount, 0, len(results))
	for reason, n := range results {
		out = append(out, reasonCount{reason: reason, count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].reason < out[j].reason
	})
	return out
}

func printClaims(ui *ui, claims *auth.ClaimSet) {
	for _, cl := range claims.Claims() {
		fmt.Printf("  %s %s\n", ui.info(cl.Type), cl.Value)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
