package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

type ui struct {
	title func(a ...any) string
	ok    func(a ...any) string
	info  func(a ...any) string
	warn  func(a ...any) string
	err   func(a ...any) string
	dim   func(a ...any) string
}

func newUI() *ui {
	return &ui{
		title: color.New(color.FgHiCyan, color.Bold).SprintFunc(),
		ok:    color.New(color.FgGreen, color.Bold).SprintFunc(),
		info:  color.New(color.FgCyan).SprintFunc(),
		warn:  color.New(color.FgYellow).SprintFunc(),
		err:   color.New(color.FgRed, color.Bold).SprintFunc(),
		dim:   color.New(color.FgHiBlack).SprintFunc(),
	}
}

type profile struct {
	BaseURL      string `yaml:"baseUrl"`
	SigningKey   string `yaml:"signingKey"`
	Issuer       string `yaml:"issuer"`
	Audience     string `yaml:"audience"`
	SessionToken string `yaml:"sessionToken"`
}

type cliConfig struct {
	CurrentProfile string             `yaml:"currentProfile"`
	Profiles       map[string]profile `yaml:"profiles"`
}

// globals holds the persistent flags after profile and env resolution.
type globals struct {
	profileName string
	baseURL     string
	secret      string
	issuer      string
	audience    string
	session     string
}

func main() {
	g := &globals{
		profileName: getenv("ZUMO_PROFILE", ""),
		baseURL:     getenv("ZUMO_BASE_URL", ""),
	}
	ui := newUI()

	root := &cobra.Command{
		Use:   "zumoctl",
		Short: "zumo CLI",
		Long:  "zumo CLI for minting and inspecting session tokens and querying provider identities.",
	}
	root.SetHelpTemplate(helpTemplate(ui))
	root.SilenceUsage = true

	root.PersistentFlags().StringVar(&g.profileName, "profile", g.profileName, "Config profile")
	root.PersistentFlags().StringVar(&g.baseURL, "base-url", g.baseURL, "Token service base URL")
	root.PersistentFlags().StringVar(&g.secret, "secret", "", "Signing key (default: $ZUMO_SIGNING_KEY, profile, or prompt)")
	root.PersistentFlags().StringVar(&g.issuer, "issuer", "", "Token issuer")
	root.PersistentFlags().StringVar(&g.audience, "audience", "", "Token audience")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, _, _ := loadConfig()
		prof := cfg.Profiles[resolveProfileName(g.profileName, cfg)]

		flags := cmd.Flags()
		if !flags.Changed("base-url") && g.baseURL == "" {
			g.baseURL = firstNonEmpty(os.Getenv("EMA_RUNTIME_URL"), prof.BaseURL)
		}
		if !flags.Changed("secret") {
			g.secret = firstNonEmpty(os.Getenv("ZUMO_SIGNING_KEY"), prof.SigningKey)
		}
		if !flags.Changed("issuer") {
			g.issuer = firstNonEmpty(os.Getenv("ZUMO_ISSUER"), prof.Issuer)
		}
		if !flags.Changed("audience") {
			g.audience = firstNonEmpty(os.Getenv("ZUMO_AUDIENCE"), prof.Audience)
		}
		g.session = firstNonEmpty(os.Getenv("ZUMO_SESSION_TOKEN"), prof.SessionToken)
		return nil
	}

	root.AddCommand(initCmd(g, ui))
	root.AddCommand(tokenCmd(g, ui))
	root.AddCommand(userIDCmd(ui))
	root.AddCommand(identityCmd(g, ui))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.err("[ERROR]"), err.Error())
		os.Exit(1)
	}
}

func initCmd(g *globals, ui *ui) *cobra.Command {
	var noPrompt bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize CLI config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cfgPath, err := loadConfig()
			if err != nil {
				return err
			}
			active := resolveProfileName(g.profileName, cfg)
			prof := cfg.Profiles[active]

			baseURL := firstNonEmpty(g.baseURL, prof.BaseURL)
			issuer := firstNonEmpty(g.issuer, prof.Issuer)
			audience := firstNonEmpty(g.audience, prof.Audience)
			secret := firstNonEmpty(g.secret, prof.SigningKey)
			if !noPrompt {
				reader := bufio.NewReader(os.Stdin)
				baseURL = prompt(reader, "Token service base URL", baseURL)
				issuer = prompt(reader, "Issuer (empty for default)", issuer)
				audience = prompt(reader, "Audience (empty for default)", audience)
				if secret == "" {
					if secret, err = promptSecret("Signing key (optional)"); err != nil {
						return err
					}
				}
			}

			prof.BaseURL = strings.TrimSpace(baseURL)
			prof.Issuer = strings.TrimSpace(issuer)
			prof.Audience = strings.TrimSpace(audience)
			prof.SigningKey = secret

			if cfg.Profiles == nil {
				cfg.Profiles = map[string]profile{}
			}
			cfg.Profiles[active] = prof
			if cfg.CurrentProfile == "" || g.profileName != "" {
				cfg.CurrentProfile = active
			}
			if err := saveConfig(cfg, cfgPath); err != nil {
				return err
			}
			fmt.Printf("%s Initialized profile '%s' at %s (signing key %s)\n", ui.ok("[OK]"), active, cfgPath, maskToken(prof.SigningKey))
			return nil
		},
	}
	cmd.Flags().BoolVar(&noPrompt, "no-prompt", false, "Disable interactive prompts")
	return cmd
}

// signingKey returns the resolved secret, prompting when none is configured.
func (g *globals) signingKey() (string, error) {
	if g.secret != "" {
		return g.secret, nil
	}
	secret, err := promptSecret("Signing key")
	if err != nil {
		return "", err
	}
	if secret == "" {
		return "", fmt.Errorf("signing key is required (use --secret, $ZUMO_SIGNING_KEY or `zumoctl init`)")
	}
	g.secret = secret
	return secret, nil
}

func helpTemplate(ui *ui) string {
	title := ui.title("zumoctl")
	return fmt.Sprintf(`%s: CLI for zumo session tokens

Usage:
  {{.UseLine}}

Commands:
{{range .Commands}}{{if (or .IsAvailableCommand .IsAdditionalHelpTopicCommand)}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}

Flags:
  {{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}

Global Flags:
  {{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}

Config:
  %s

Examples:
  zumoctl init
  zumoctl token create --user-id Facebook:1234 --lifetime 720h
  zumoctl token validate eyJhbGciOi...
  zumoctl token check-file tokens.txt
  zumoctl userid parse Facebook:1234
  zumoctl identity fetch --provider facebook --session-token eyJhbGciOi...

`, title, configPath())
}

func configPath() string {
	if v := strings.TrimSpace(os.Getenv("ZUMO_CONFIG_DIR")); v != "" {
		return filepath.Join(v, "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.yaml"
	}
	return filepath.Join(home, ".zumo", "config.yaml")
}

func loadConfig() (cliConfig, string, error) {
	path := configPath()
	var cfg cliConfig
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cliConfig{Profiles: map[string]profile{}}, path, nil
		}
		return cfg, path, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, path, err
	}
	if cfg.Profiles == nil {
		cfg.Profiles = map[string]profile{}
	}
	return cfg, path, nil
}

// saveConfig writes with 0600 since profiles may hold the signing key.
func saveConfig(cfg cliConfig, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func resolveProfileName(flag string, cfg cliConfig) string {
	if strings.TrimSpace(flag) != "" {
		return strings.TrimSpace(flag)
	}
	if v := strings.TrimSpace(os.Getenv("ZUMO_PROFILE")); v != "" {
		return v
	}
	if cfg.CurrentProfile != "" {
		return cfg.CurrentProfile
	}
	return "default"
}

func promptSecret(label string) (string, error) {
	fmt.Printf("%s: ", label)
	b, err := termReadPassword()
	fmt.Println()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func termReadPassword() ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if line != "" {
			err = nil
		}
		return []byte(strings.TrimSpace(line)), err
	}
	return term.ReadPassword(fd)
}

func prompt(r *bufio.Reader, label, def string) string {
	if def != "" {
		fmt.Printf("%s [%s]: ", label, def)
	} else {
		fmt.Printf("%s: ", label)
	}
	line, _ := r.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return def
	}
	return line
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func maskToken(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "<unset>"
	}
	if len(v) <= 8 {
		return "****"
	}
	return v[:4] + "..." + v[len(v)-4:]
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
