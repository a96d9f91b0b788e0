package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/outreach-cli/internal/secrets"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage stored API keys and the LinkedIn session cookie",
	Long: "Stores credentials in the OS keychain (or the local store when no keychain is available). Names: " +
		strings.Join(secrets.Names(), ", ") + ".",
}

var keysSetCmd = &cobra.Command{
	Use:   "set <name> [value]",
	Short: "Store a key; the value is read from stdin when omitted",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		if !secrets.Known(name) {
			return eris.Errorf("unknown key %q (expected one of %s)", name, strings.Join(secrets.Names(), ", "))
		}

		var value string
		if len(args) == 2 {
			value = args[1]
		} else {
			v, err := readSecret(cmd.InOrStdin())
			if err != nil {
				return err
			}
			value = v
		}

		ctx := cmd.Context()
		env, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Vault.Set(ctx, name, value); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Stored %s (%s)\n", name, secrets.Mask(value))
		return nil
	},
}

var keysDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Remove a stored key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Vault.Delete(ctx, args[0]); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
		return nil
	},
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show which keys are stored",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		return formatKeys(ctx, cmd.OutOrStdout(), env.Vault)
	},
}

func init() {
	keysCmd.AddCommand(keysSetCmd, keysDeleteCmd, keysListCmd)
	rootCmd.AddCommand(keysCmd)
}

func readSecret(in io.Reader) (string, error) {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", eris.Wrap(err, "read value")
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", eris.New("no value given")
	}
	return line, nil
}

func formatKeys(ctx context.Context, out io.Writer, vault *secrets.Vault) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tSTORED")
	_, _ = fmt.Fprintln(w, "----\t------")
	for _, name := range secrets.Names() {
		val, err := vault.Resolve(ctx, name, "")
		if err != nil {
			return err
		}
		stored := "-"
		if val != "" {
			stored = secrets.Mask(val)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\n", name, stored)
	}
	return w.Flush()
}
