package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	jwttoken "beacon/internal/jwt_token"
	"beacon/internal/legal/manifest"
	"beacon/internal/partner/seed"
	id "beacon/pkg/domain"
)

func (c *cli) partnersCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "partners", Short: "Manage the partner registry"}
	cmd.AddCommand(&cobra.Command{
		Use:   "import <seed-file>",
		Short: "Register partners from a YAML seed file",
		Long: `Registers every partner in the seed file. Partners that already exist are
skipped, so the file can be re-applied. API keys are read from the variable
each entry names in api_key_env; entries without one get a generated key,
printed once.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := seed.Load(args[0])
			if err != nil {
				return err
			}
			return c.withEnv(cmd, func(ctx context.Context, e *env) error {
				partners, err := e.partners()
				if err != nil {
					return err
				}
				results, err := seed.Apply(ctx, partners, f.Requests(os.Getenv))
				if err != nil {
					return err
				}
				return c.emit(cmd.OutOrStdout(), results, func(w io.Writer) error {
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "PARTNER\tSTATUS\tGENERATED KEY")
					for _, r := range results {
						status := "registered"
						if r.Skipped {
							status = "skipped"
						}
						fmt.Fprintf(tw, "%s\t%s\t%s\n", r.PartnerID, status, r.GeneratedKey)
					}
					return tw.Flush()
				})
			})
		},
	})
	return cmd
}

func (c *cli) blackoutCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "blackout", Short: "Inspect or end blackout windows"}
	cmd.AddCommand(&cobra.Command{
		Use:   "status <signal-id>",
		Short: "Show the active blackout window for a signal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			signalID, err := id.ParseSignalID(args[0])
			if err != nil {
				return err
			}
			return c.withEnv(cmd, func(ctx context.Context, e *env) error {
				blackouts, err := e.blackouts()
				if err != nil {
					return err
				}
				rec, err := blackouts.Active(ctx, signalID)
				if err != nil {
					return err
				}
				return c.emit(cmd.OutOrStdout(), rec, func(w io.Writer) error {
					if rec == nil {
						_, err := fmt.Fprintf(w, "%s: no active blackout\n", signalID)
						return err
					}
					_, err := fmt.Fprintf(w, "%s: blacked out until %s (%s left)\n",
						signalID, rec.ExpiresAt.UTC().Format(time.RFC3339),
						time.Until(rec.ExpiresAt).Round(time.Minute))
					return err
				})
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "end <signal-id>",
		Short: "End a signal's blackout ahead of expiry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			signalID, err := id.ParseSignalID(args[0])
			if err != nil {
				return err
			}
			return c.withEnv(cmd, func(ctx context.Context, e *env) error {
				blackouts, err := e.blackouts()
				if err != nil {
					return err
				}
				if err := blackouts.End(ctx, signalID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: blackout ended\n", signalID)
				return nil
			})
		},
	})
	return cmd
}

type verifyResult struct {
	SignalID id.SignalID `json:"signalId"`
	Isolated bool        `json:"isolated"`
}

func (c *cli) isolationCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "isolation", Short: "Isolated storage checks"}
	cmd.AddCommand(&cobra.Command{
		Use:   "verify <signal-id>",
		Short: "Report whether a signal is held in isolated storage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			signalID, err := id.ParseSignalID(args[0])
			if err != nil {
				return err
			}
			return c.withEnv(cmd, func(ctx context.Context, e *env) error {
				isolation, err := e.isolation(e.legalStore())
				if err != nil {
					return err
				}
				ok, err := isolation.Verify(ctx, signalID)
				if err != nil {
					return err
				}
				res := verifyResult{SignalID: signalID, Isolated: ok}
				return c.emit(cmd.OutOrStdout(), res, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "%s: isolated=%t\n", signalID, ok)
					return err
				})
			})
		},
	})
	return cmd
}

func (c *cli) legalCmd() *cobra.Command {
	var out string
	manifestCmd := &cobra.Command{
		Use:   "manifest <legal-request-id>",
		Short: "Export the signal manifest of an approved legal request",
		Long: `Builds the manifest of signals referenced by an approved or fulfilled legal
request. Each lookup is audited against the request. With --out the manifest
is written as an xlsx workbook; otherwise it is printed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withEnv(cmd, func(ctx context.Context, e *env) error {
				legal, err := e.legal()
				if err != nil {
					return err
				}
				m, err := legal.Manifest(ctx, id.LegalRequestID(args[0]))
				if err != nil {
					return err
				}
				if out != "" {
					f, err := os.Create(out)
					if err != nil {
						return fmt.Errorf("create %s: %w", out, err)
					}
					if err := manifest.WriteXLSX(f, m); err != nil {
						_ = f.Close()
						return err
					}
					if err := f.Close(); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d signals)\n", out, len(m.Entries))
					return nil
				}
				return c.emit(cmd.OutOrStdout(), m, func(w io.Writer) error {
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					fmt.Fprintf(tw, "%s\t%s\t%s\n", m.RequestID, m.RequestType, m.Status)
					fmt.Fprintln(tw, "SIGNAL\tISOLATED\tJURISDICTION")
					for _, entry := range m.Entries {
						fmt.Fprintf(tw, "%s\t%t\t%s\n", entry.SignalID, entry.Present, entry.Jurisdiction)
					}
					return tw.Flush()
				})
			})
		},
	}
	manifestCmd.Flags().StringVar(&out, "out", "", "write the manifest to this xlsx file")

	cmd := &cobra.Command{Use: "legal", Short: "Legal request tooling"}
	cmd.AddCommand(manifestCmd)
	return cmd
}

func (c *cli) tokenCmd() *cobra.Command {
	var (
		operator string
		role     string
		ttl      time.Duration
	)
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Mint an operator JWT signed with the configured key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if operator == "" {
				return fmt.Errorf("--operator is required")
			}
			cfg, err := c.load()
			if err != nil {
				return err
			}
			svc := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)
			token, err := svc.GenerateAccessToken(operator, role, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	issue.Flags().StringVar(&operator, "operator", "", "operator id placed in the token")
	issue.Flags().StringVar(&role, "role", "operator", "operator role")
	issue.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")

	cmd := &cobra.Command{Use: "token", Short: "Operator tokens"}
	cmd.AddCommand(issue)
	return cmd
}
