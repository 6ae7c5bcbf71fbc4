package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Sternrassler/ipintel-client/pkg/credential"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newKeyCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage the stored Criminal IP API key",
	}
	cmd.AddCommand(newKeySetCmd(opts))
	cmd.AddCommand(newKeyShowCmd(opts))
	cmd.AddCommand(newKeyDeleteCmd(opts))
	return cmd
}

func newKeySetCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set",
		Short: "Encrypt and store the API key",
		Long: "Prompts for the API key and a passphrase and writes the encrypted key store.\n" +
			"The passphrase is taken from the configured environment variable when set.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}

			p := newPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())
			key := opts.apiKey
			if key == "" {
				if key, err = p.secret("Criminal IP API key: "); err != nil {
					return err
				}
			}

			passphrase := cfg.Passphrase()
			if passphrase == "" {
				if passphrase, err = p.secret("Passphrase: "); err != nil {
					return err
				}
				confirm, err := p.secret("Repeat passphrase: ")
				if err != nil {
					return err
				}
				if confirm != passphrase {
					return errors.New("passphrases do not match")
				}
			}

			store := credential.NewFileStore(cfg.Credentials.Path, passphrase)
			if err := store.Save(key); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved API key %s to %s\n", credential.Mask(strings.TrimSpace(key)), store.Path())
			return nil
		},
	}
}

func newKeyShowCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the masked API key and where it comes from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}

			sources := []struct {
				name     string
				provider credential.Provider
			}{
				{"flag", credential.Static(opts.apiKey)},
				{"env " + credential.EnvAPIKey, credential.Env{}},
				{"store " + cfg.Credentials.Path, cfg.FileStore()},
			}
			for _, s := range sources {
				key, err := s.provider.APIKey()
				if err != nil {
					return fmt.Errorf("%s: %w", s.name, err)
				}
				if key != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "%s (from %s)\n", credential.Mask(key), s.name)
					return nil
				}
			}
			return errors.New("no API key configured; run 'ipintel key set' or set " + credential.EnvAPIKey)
		},
	}
}

func newKeyDeleteCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete",
		Short: "Remove the encrypted key store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			store := cfg.FileStore()
			if err := store.Delete(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", store.Path())
			return nil
		},
	}
}

// prompter reads secrets without echo from a terminal, or line by line from
// any other reader.
type prompter struct {
	in    io.Reader
	lines *bufio.Reader
	out   io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: in, lines: bufio.NewReader(in), out: out}
}

func (p *prompter) secret(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)

	if f, ok := p.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(p.out)
		if err != nil {
			return "", fmt.Errorf("read input: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := p.lines.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
