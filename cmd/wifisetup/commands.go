package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nuclearlighters/wifisetup/internal/managers"
	"github.com/nuclearlighters/wifisetup/internal/modes"
	"github.com/nuclearlighters/wifisetup/internal/wifi"
)

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func newBootCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "boot-check",
		Short: "Stay in client mode if connected, otherwise bring up the hotspot",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := ctx.openStack(false)
			if err != nil {
				return err
			}
			defer s.close()

			runCtx, cancel := signalContext()
			defer cancel()

			mode, err := s.mgr.Boot(runCtx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Mode: %s\n", mode)
			return nil
		},
	}
}

func newScanCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "List visible wireless networks",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := ctx.openStack(false)
			if err != nil {
				return err
			}
			defer s.close()

			runCtx, cancel := signalContext()
			defer cancel()

			networks, err := s.mgr.ScanNetworks(runCtx)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, networks)
			}
			if len(networks) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No networks found")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderNetworks(networks))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func renderNetworks(networks []wifi.Network) string {
	rows := make([][]string, 0, len(networks))
	for _, n := range networks {
		flags := ""
		switch {
		case n.IsCurrent:
			flags = "current"
		case n.IsSaved:
			flags = "saved"
		}
		channel := ""
		if n.Channel > 0 {
			channel = strconv.Itoa(n.Channel)
		}
		rows = append(rows, []string{
			n.SSID,
			fmt.Sprintf("%d%%", n.SignalPercent),
			string(n.Security),
			string(n.Band),
			channel,
			flags,
		})
	}
	return renderTable(
		[]string{"SSID", "Signal", "Security", "Band", "Channel", ""},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignRight, alignLeft},
	)
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the interface mode and connection",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := ctx.openStack(false)
			if err != nil {
				return err
			}
			defer s.close()

			st := s.mgr.GetStatus(cmd.Context())
			if jsonOut {
				return writeJSON(cmd, st)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderStatus(st))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func renderStatus(st wifi.Status) string {
	sig := "-"
	if st.SignalPercent != nil {
		sig = fmt.Sprintf("%d%%", *st.SignalPercent)
	}
	orDash := func(s string) string {
		if s == "" {
			return "-"
		}
		return s
	}
	return renderTable(
		[]string{"Field", "Value"},
		[][]string{
			{"Interface", st.Interface},
			{"Mode", string(st.Mode)},
			{"Connected", strconv.FormatBool(st.Connected)},
			{"SSID", orDash(st.SSID)},
			{"IP", orDash(st.IP)},
			{"Signal", sig},
			{"Frequency", orDash(st.Frequency)},
		},
		nil,
	)
}

func newConnectCommand(ctx *commandContext) *cobra.Command {
	var (
		ssid     string
		password string
		security string
		hidden   bool
		jsonOut  bool
	)

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Join a wireless network and switch to client mode",
		RunE: func(cmd *cobra.Command, args []string) error {
			sec, err := wifi.ParseSecurity(security)
			if err != nil {
				return err
			}
			creds := wifi.Credentials{SSID: ssid, Password: password, Security: sec, Hidden: hidden}

			s, err := ctx.openStack(false)
			if err != nil {
				return err
			}
			defer s.close()

			// Interrupting an attempt falls back to the hotspot.
			runCtx, cancel := signalContext()
			defer cancel()

			out := s.mgr.Connect(runCtx, creds)
			return reportOutcome(cmd, s.mgr, out, jsonOut)
		},
	}
	cmd.Flags().StringVar(&ssid, "ssid", "", "Network name")
	cmd.Flags().StringVar(&password, "password", "", "Passphrase or WEP key")
	cmd.Flags().StringVar(&security, "security", "", "Open, WEP, WPA, WPA2, WPA3 or WPA/WPA2 (default: auto)")
	cmd.Flags().BoolVar(&hidden, "hidden", false, "Network does not broadcast its SSID")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	cmd.MarkFlagRequired("ssid")
	return cmd
}

func newResetCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Return to hotspot mode and restart",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := ctx.openStack(false)
			if err != nil {
				return err
			}
			defer s.close()

			out := s.mgr.ResetToHotspot(context.Background())
			return reportOutcome(cmd, s.mgr, out, jsonOut)
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

// reportOutcome prints a transition result and keeps the process alive
// until a scheduled restart has been issued.
func reportOutcome(cmd *cobra.Command, mgr *managers.WiFiManager, out modes.Outcome, jsonOut bool) error {
	if jsonOut {
		if err := writeJSON(cmd, out); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), out.Message)
		if len(out.Steps) > 0 {
			fmt.Fprintln(cmd.OutOrStdout(), renderSteps(out))
		}
		if !out.RestartAt.IsZero() {
			fmt.Fprintf(cmd.OutOrStdout(), "Restarting at %s\n", out.RestartAt.Format(time.TimeOnly))
		}
	}

	waitCtx, cancel := signalContext()
	defer cancel()
	if err := mgr.WaitRestart(waitCtx); err != nil {
		return err
	}

	if !out.Success {
		if out.Err != nil {
			return out.Err
		}
		return errors.New(out.Message)
	}
	return nil
}

func renderSteps(out modes.Outcome) string {
	rows := make([][]string, 0, len(out.Steps))
	for _, e := range out.Steps {
		rows = append(rows, []string{
			string(e.Step),
			string(e.Outcome),
			e.Duration.Round(time.Millisecond).String(),
			e.Error,
		})
	}
	return renderTable(
		[]string{"Step", "Outcome", "Duration", "Error"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
	)
}

func newSavedCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "saved",
		Short: "List saved client networks",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := ctx.openStack(false)
			if err != nil {
				return err
			}
			defer s.close()

			saved, err := s.mgr.ListSavedNetworks(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, saved)
			}
			if len(saved) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No saved networks")
				return nil
			}
			rows := make([][]string, 0, len(saved))
			for _, n := range saved {
				state := ""
				switch {
				case n.Current:
					state = "current"
				case n.Disabled:
					state = "disabled"
				}
				rows = append(rows, []string{strconv.Itoa(n.ID), n.SSID, strconv.Itoa(n.Priority), state})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "SSID", "Priority", ""},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newForgetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "forget <id>",
		Short: "Remove a saved client network",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil || id < 0 {
				return fmt.Errorf("invalid network id %q", args[0])
			}

			s, err := ctx.openStack(false)
			if err != nil {
				return err
			}
			defer s.close()

			removed, err := s.mgr.ForgetNetwork(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Forgot '%s'\n", removed.SSID)
			return nil
		},
	}
}
