package main

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/mdp/qrterminal/v3"
	"github.com/pquerna/otp/totp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/crypto/bcrypt"

	"pkt.systems/halolight/core"
	"pkt.systems/halolight/internal/appconfig"
	"pkt.systems/halolight/internal/auth"
	"pkt.systems/halolight/schema"
	"pkt.systems/kryptograf/keymgmt"
	"pkt.systems/pslog"
)

const totpIssuer = "halolight"

func newUsersCmd() *cobra.Command {
	cli := &usersCLI{}
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage halolight users",
	}
	cmd.PersistentFlags().StringVarP(&cli.cfgPath, "config", "c", "", "path to config file")
	cmd.AddCommand(cli.listCmd(), cli.addCmd(), cli.deleteCmd(), cli.rotateTOTPCmd(), cli.chpasswdCmd())
	return cmd
}

type usersCLI struct {
	cfgPath string
	cfg     appconfig.Config
}

func (c *usersCLI) store(cmd *cobra.Command) (*auth.Store, error) {
	cfg, err := appconfig.Load(c.cfgPath)
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	return auth.NewStoreWithLogger(cfg.Auth.UserFile, cfg.Auth.SeedUsers, pslog.Ctx(cmd.Context()))
}

// dropWorkspace removes the tabs and settings persisted for id so a later
// account that is handed the same id starts clean.
func (c *usersCLI) dropWorkspace(cmd *cobra.Command, id schema.UserID) (bool, error) {
	svc, err := core.NewService(schema.ServiceConfig{StateDir: c.cfg.StateDir}, core.ServiceDeps{Logger: pslog.Ctx(cmd.Context())})
	if err != nil {
		return false, err
	}
	resp, err := svc.DropWorkspace(cmd.Context(), schema.DropWorkspaceRequest{UserID: id})
	return resp.Removed, err
}

// target opens the store and resolves args[0], a user id or an email.
func (c *usersCLI) target(cmd *cobra.Command, ref string) (*auth.Store, auth.Record, error) {
	store, err := c.store(cmd)
	if err != nil {
		return nil, auth.Record{}, err
	}
	ref = strings.TrimSpace(ref)
	if strings.Contains(ref, "@") {
		record, err := store.UserByEmail(ref)
		return store, record, err
	}
	if schema.ValidateUserID(schema.UserID(ref)) != nil {
		return nil, auth.Record{}, fmt.Errorf("invalid user reference %q", ref)
	}
	record, err := store.UserByID(schema.UserID(ref))
	return store, record, err
}

func (c *usersCLI) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.store(cmd)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "ID\tEMAIL\tNAME\tROLE\tTOTP")
			for _, user := range store.LoadUsers() {
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", user.ID, user.Email, user.Name, user.Role, onOff(user.TOTPSecret != ""))
			}
			return tw.Flush()
		},
	}
}

func (c *usersCLI) addCmd() *cobra.Command {
	var pw passwordSource
	var name, role string
	var withTOTP bool
	cmd := &cobra.Command{
		Use:   "add <email>",
		Short: "Add a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			email := schema.NormalizeEmail(args[0])
			if err := schema.ValidateEmail(email); err != nil {
				return err
			}
			userRole, err := parseRole(role)
			if err != nil {
				return err
			}
			name = strings.TrimSpace(name)
			if name == "" {
				name, _, _ = strings.Cut(email, "@")
			}
			out := enrollment{}
			hash, err := pw.hash(cmd, &out)
			if err != nil {
				return err
			}
			if withTOTP {
				if err := out.enrollTOTP(email); err != nil {
					return err
				}
			}
			store, err := c.store(cmd)
			if err != nil {
				return err
			}
			if out.record, err = store.AddUser(auth.Record{
				Email:        email,
				Name:         name,
				Role:         userRole,
				PasswordHash: hash,
				TOTPSecret:   out.secret,
			}); err != nil {
				return err
			}
			out.print(cmd.OutOrStdout())
			return nil
		},
	}
	pw.register(cmd.Flags())
	cmd.Flags().StringVar(&name, "name", "", "display name (defaults to the email local part)")
	cmd.Flags().StringVar(&role, "role", string(schema.RoleUser), "role: admin, manager or user")
	cmd.Flags().BoolVar(&withTOTP, "totp", false, "enroll a TOTP second factor")
	return cmd
}

func (c *usersCLI) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id|email>",
		Short: "Delete a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, record, err := c.target(cmd, args[0])
			if err != nil {
				return err
			}
			if err := store.DeleteUser(record.ID); err != nil {
				return err
			}
			removed, err := c.dropWorkspace(cmd, record.ID)
			if err != nil {
				return fmt.Errorf("user %s deleted, workspace kept: %w", record.ID, err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "deleted user: %s (%s) workspace_removed=%t\n", record.ID, record.Email, removed)
			return nil
		},
	}
}

func (c *usersCLI) rotateTOTPCmd() *cobra.Command {
	var disable bool
	cmd := &cobra.Command{
		Use:   "rotate-totp <id|email>",
		Short: "Rotate (or disable) the TOTP secret of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, record, err := c.target(cmd, args[0])
			if err != nil {
				return err
			}
			out := enrollment{record: record}
			if !disable {
				if err := out.enrollTOTP(record.Email); err != nil {
					return err
				}
			}
			if err := store.UpdateTOTP(record.ID, out.secret); err != nil {
				return err
			}
			if disable {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "totp disabled: %s\n", record.Email)
				return nil
			}
			out.print(cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Flags().BoolVar(&disable, "disable", false, "remove the second factor instead of rotating it")
	return cmd
}

func (c *usersCLI) chpasswdCmd() *cobra.Command {
	var pw passwordSource
	cmd := &cobra.Command{
		Use:   "chpasswd <id|email>",
		Short: "Change a user's password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, record, err := c.target(cmd, args[0])
			if err != nil {
				return err
			}
			out := enrollment{record: record}
			hash, err := pw.hash(cmd, &out)
			if err != nil {
				return err
			}
			if err := store.UpdatePassword(record.ID, hash); err != nil {
				return err
			}
			out.print(cmd.OutOrStdout())
			return nil
		},
	}
	pw.register(cmd.Flags())
	return cmd
}

func parseRole(value string) (schema.Role, error) {
	switch role := schema.Role(strings.ToLower(strings.TrimSpace(value))); role {
	case schema.RoleAdmin, schema.RoleManager, schema.RoleUser:
		return role, nil
	default:
		return "", fmt.Errorf("unknown role %q (want admin, manager or user)", value)
	}
}

// passwordSource picks where a new password comes from: stdin, a generated
// one, or an interactive prompt with confirmation.
type passwordSource struct {
	stdin bool
	auto  bool
}

func (p *passwordSource) register(flags *pflag.FlagSet) {
	flags.BoolVar(&p.stdin, "password-from-stdin", false, "read password from stdin")
	flags.BoolVar(&p.auto, "auto-password", false, "generate a random password")
}

// hash resolves the password and returns its bcrypt hash. Generated
// passwords are recorded on out so they get printed once.
func (p passwordSource) hash(cmd *cobra.Command, out *enrollment) (string, error) {
	password, err := p.read(cmd)
	if err != nil {
		return "", err
	}
	if p.auto {
		out.password = password
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (p passwordSource) read(cmd *cobra.Command) (string, error) {
	switch {
	case p.stdin && p.auto:
		return "", errors.New("choose one of --password-from-stdin or --auto-password")
	case p.auto:
		return rand.Text(), nil
	case p.stdin:
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", err
		}
		password := strings.TrimSpace(string(data))
		return password, schema.ValidatePassword(password, password)
	}
	password, err := keymgmt.PromptPassphrase(cmd.InOrStdin(), "Password: ", cmd.ErrOrStderr())
	if err != nil {
		return "", err
	}
	confirm, err := keymgmt.PromptPassphrase(cmd.InOrStdin(), "Confirm password: ", cmd.ErrOrStderr())
	if err != nil {
		return "", err
	}
	return string(password), schema.ValidatePassword(string(password), string(confirm))
}

// enrollment is what an admin needs to hand over to the user.
type enrollment struct {
	record   auth.Record
	password string
	secret   string
	url      string
}

func (e *enrollment) enrollTOTP(account string) error {
	key, err := totp.Generate(totp.GenerateOpts{Issuer: totpIssuer, AccountName: account})
	if err != nil {
		return err
	}
	e.secret, e.url = key.Secret(), key.URL()
	return nil
}

func (e enrollment) print(w io.Writer) {
	_, _ = fmt.Fprintf(w, "id: %s\nemail: %s\nrole: %s\n", e.record.ID, e.record.Email, e.record.Role)
	if e.password != "" {
		_, _ = fmt.Fprintf(w, "password: %s\n", e.password)
	}
	if e.secret == "" {
		return
	}
	_, _ = fmt.Fprintf(w, "totp_secret: %s\notpauth_url: %s\ntotp_qr:\n", e.secret, e.url)
	qrterminal.GenerateHalfBlock(e.url, qrterminal.L, w)
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
