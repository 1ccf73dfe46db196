package main

import (
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

// amountFields lists response keys holding base-unit amounts.
var amountFields = []string{
	"total_stake_true", "total_stake_false", "stake", "principal",
	"simulated_yield", "amount", "min_stake", "balance",
}

// humanize rewrites base-unit amounts in a decoded response, recursing into
// nested objects and arrays.
func humanize(v any, decimals int32) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			if s, ok := val.(string); ok && isAmountField(k) {
				t[k] = formatAmount(s, decimals)
				continue
			}
			t[k] = humanize(val, decimals)
		}
	case []any:
		for i := range t {
			t[i] = humanize(t[i], decimals)
		}
	}
	return v
}

func isAmountField(k string) bool {
	for _, f := range amountFields {
		if f == k {
			return true
		}
	}
	return false
}

func parseBetID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid bet id %q", s)
	}
	return id, nil
}

// send runs a request and prints the humanized response.
func send(cmd *cobra.Command, o *globalOpts, sign bool, method, path string, payload any) error {
	c, err := o.client(sign)
	if err != nil {
		return err
	}
	var out any
	if err := c.do(cmd.Context(), method, path, payload, &out); err != nil {
		return err
	}
	return o.print(humanize(out, o.decimals))
}

func createCmd(o *globalOpts) *cobra.Command {
	var (
		stake      string
		condition  string
		days       uint64
		prediction bool
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Open a new bet with the signer as creator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := parseAmount(stake, o.decimals)
			if err != nil {
				return err
			}
			return send(cmd, o, true, "POST", "/api/bets", map[string]any{
				"stake":         v.String(),
				"condition":     condition,
				"duration_days": days,
				"prediction":    prediction,
			})
		},
	}
	cmd.Flags().StringVarP(&stake, "stake", "s", "", "stake in tokens")
	cmd.Flags().StringVarP(&condition, "condition", "c", "", "condition the bet settles on")
	cmd.Flags().Uint64VarP(&days, "days", "d", 0, "duration in days (0 selects the registry default)")
	cmd.Flags().BoolVarP(&prediction, "prediction", "p", true, "creator's predicted outcome")
	_ = cmd.MarkFlagRequired("stake")
	_ = cmd.MarkFlagRequired("condition")
	return cmd
}

func joinCmd(o *globalOpts) *cobra.Command {
	var (
		stake      string
		prediction bool
	)
	cmd := &cobra.Command{
		Use:   "join <bet-id>",
		Short: "Stake on an open bet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBetID(args[0])
			if err != nil {
				return err
			}
			v, err := parseAmount(stake, o.decimals)
			if err != nil {
				return err
			}
			return send(cmd, o, true, "POST", fmt.Sprintf("/api/bets/%d/join", id), map[string]any{
				"stake":      v.String(),
				"prediction": prediction,
			})
		},
	}
	cmd.Flags().StringVarP(&stake, "stake", "s", "", "stake in tokens")
	cmd.Flags().BoolVarP(&prediction, "prediction", "p", false, "predicted outcome")
	_ = cmd.MarkFlagRequired("stake")
	_ = cmd.MarkFlagRequired("prediction")
	return cmd
}

func voteCmd(o *globalOpts) *cobra.Command {
	var outcome bool
	cmd := &cobra.Command{
		Use:   "vote <bet-id>",
		Short: "Submit the outcome you observed for an expired bet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBetID(args[0])
			if err != nil {
				return err
			}
			return send(cmd, o, true, "POST", fmt.Sprintf("/api/bets/%d/votes", id), map[string]any{
				"outcome": outcome,
			})
		},
	}
	cmd.Flags().BoolVarP(&outcome, "outcome", "o", false, "observed outcome")
	_ = cmd.MarkFlagRequired("outcome")
	return cmd
}

func finalizeCmd(o *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "finalize <bet-id>",
		Short: "Settle a bet whose participants agree on the outcome",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBetID(args[0])
			if err != nil {
				return err
			}
			return send(cmd, o, true, "POST", fmt.Sprintf("/api/bets/%d/finalize", id), nil)
		},
	}
}

func adminFinalizeCmd(o *globalOpts) *cobra.Command {
	var outcome, cancel bool
	cmd := &cobra.Command{
		Use:   "admin-finalize <bet-id>",
		Short: "Force an outcome or cancel a bet (administrator only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBetID(args[0])
			if err != nil {
				return err
			}
			return send(cmd, o, true, "POST", fmt.Sprintf("/api/admin/bets/%d/finalize", id), map[string]any{
				"winning_outcome": outcome,
				"cancel":          cancel,
			})
		},
	}
	cmd.Flags().BoolVarP(&outcome, "outcome", "o", false, "winning outcome")
	cmd.Flags().BoolVar(&cancel, "cancel", false, "cancel the bet and refund every stake")
	return cmd
}

func setYieldRateCmd(o *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "set-yield-rate <bps>",
		Short: "Set the simulated yield rate in basis points (administrator only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bps, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid basis points %q", args[0])
			}
			return send(cmd, o, true, "PUT", "/api/admin/yield-rate", map[string]any{"bps": bps})
		},
	}
}

func setMinStakeCmd(o *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "set-min-stake <amount>",
		Short: "Set the minimum stake in tokens (administrator only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := parseAmount(args[0], o.decimals)
			if err != nil {
				return err
			}
			return send(cmd, o, true, "PUT", "/api/admin/min-stake", map[string]any{"amount": v.String()})
		},
	}
}

func transferOwnershipCmd(o *globalOpts) *cobra.Command {
	var renounce bool
	cmd := &cobra.Command{
		Use:   "transfer-ownership [new-owner]",
		Short: "Hand the administrator role to another address (administrator only)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if renounce {
				return send(cmd, o, true, "DELETE", "/api/admin/owner", nil)
			}
			if len(args) != 1 || !common.IsHexAddress(args[0]) {
				return fmt.Errorf("a hex address for the new owner is required")
			}
			return send(cmd, o, true, "PUT", "/api/admin/owner", map[string]any{"new_owner": args[0]})
		},
	}
	cmd.Flags().BoolVar(&renounce, "renounce", false, "give up the role without a successor")
	return cmd
}

func detailsCmd(o *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "details <bet-id>",
		Short: "Show a bet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBetID(args[0])
			if err != nil {
				return err
			}
			return send(cmd, o, false, "GET", fmt.Sprintf("/api/bets/%d", id), nil)
		},
	}
}

func stakeCmd(o *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "stake <bet-id> <address>",
		Short: "Show what an address staked on a bet",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBetID(args[0])
			if err != nil {
				return err
			}
			if !common.IsHexAddress(args[1]) {
				return fmt.Errorf("invalid address %q", args[1])
			}
			return send(cmd, o, false, "GET", fmt.Sprintf("/api/bets/%d/participants/%s", id, args[1]), nil)
		},
	}
}

func registryCmd(o *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "registry",
		Short: "Show the registry parameters and bet counter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return send(cmd, o, false, "GET", "/api/registry", nil)
		},
	}
}
