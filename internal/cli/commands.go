package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/snapcache/cluster/embedded"
	pr "github.com/unkn0wn-root/snapcache/provider"
	"github.com/unkn0wn-root/snapcache/serial"
)

// withApp runs fn against a freshly set up app and closes it afterwards.
func withApp(fn func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.Close(cmd.Context())
		return fn(cmd, a, args)
	}
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get [cache] [key]",
		Short: "Reads and decodes the value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			c, err := a.table.Cache(args[0])
			if err != nil {
				return err
			}
			v, ok, err := c.Get(cmd.Context(), args[1])
			if err != nil {
				return describe(err)
			}
			out := cmd.OutOrStdout()
			if !ok {
				fmt.Fprintf(out, "cache=%s, key=%s, found=false\n", c.Name(), args[1])
				return nil
			}
			body, err := json.Marshal(v)
			if err != nil {
				body = []byte(fmt.Sprintf("%#v", v))
			}
			fmt.Fprintf(out, "cache=%s, key=%s, found=true, type=%T, value=%s\n", c.Name(), args[1], v, body)
			return nil
		}),
	}
}

func newSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set [cache] [key] [json]",
		Short: "Stores a JSON value under a key",
		Args:  cobra.ExactArgs(3),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			v, err := parseJSON(args[2])
			if err != nil {
				return err
			}
			c, err := a.table.Cache(args[0])
			if err != nil {
				return err
			}
			ttl, _ := cmd.Flags().GetDuration("ttl")
			if err := c.SetWithTTL(cmd.Context(), args[1], v, ttl); err != nil {
				return describe(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "set successfully")
			return nil
		}),
	}
	cmd.Flags().Duration("ttl", 0, WrapString("entry TTL; 0 uses the cache TTL, negative stores without expiry"))
	return cmd
}

func newDelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "del [cache] [key]",
		Short: "Deletes a key",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			c, err := a.table.Cache(args[0])
			if err != nil {
				return err
			}
			if err := c.Delete(cmd.Context(), args[1]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "delete successfully")
			return nil
		}),
	}
}

func newPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Checks the store is reachable",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			p, ok := a.store.(pr.Pinger)
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "PONG (local)")
				return nil
			}
			if err := p.Ping(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "PONG")
			return nil
		}),
	}
}

func newCachesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "caches",
		Short: "Lists the configured caches and their TTLs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := newViper(cmd)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd, v)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "default ttl=%s\n", ttlString(cfg.DefaultTTL()))
			for _, s := range cfg.Specs() {
				fmt.Fprintf(out, "%s ttl=%s\n", s.Name, ttlString(s.TTL))
			}
			return nil
		},
	}
}

// newRoundtripCmd runs a value through the configured pipeline without a
// store and reports the sizes of each stage.
func newRoundtripCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "roundtrip [json]",
		Short: "Encodes and decodes a JSON value and prints the payload sizes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := parseJSON(args[0])
			if err != nil {
				return err
			}
			vp, err := newViper(cmd)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd, vp)
			if err != nil {
				return err
			}
			c, err := newCodec(cfg)
			if err != nil {
				return err
			}

			blob, err := c.Serialize(v)
			if err != nil {
				return describe(err)
			}
			raw, err := c.Compressor().Decompress(blob)
			if err != nil {
				return describe(err)
			}
			back, err := c.Deserialize(blob)
			if err != nil {
				return describe(err)
			}
			ratio := 0.0
			if len(raw) > 0 {
				ratio = float64(len(blob)) / float64(len(raw))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "serializer=%s, compression=%s, serialized=%d, compressed=%d, ratio=%.2f, type=%T\n",
				cfg.Serializer, c.Compressor().Name(), len(raw), len(blob), ratio, back)
			return nil
		},
	}
}

func newEmbeddedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "embedded",
		Short: "Runs in-memory Redis servers on the configured nodes until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := newViper(cmd)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd, v)
			if err != nil {
				return err
			}
			c, err := embedded.Start(cfg)
			if err != nil {
				return err
			}
			defer c.Stop()
			fmt.Fprintf(cmd.OutOrStdout(), "serving %v\n", c.Addrs())

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sig)
			select {
			case <-sig:
			case <-cmd.Context().Done():
			}
			return nil
		},
	}
}

func parseJSON(s string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, fmt.Errorf("value must be JSON: %w", err)
	}
	return v, nil
}

// describe prefixes codec failures with their kind.
func describe(err error) error {
	var se *serial.Error
	if errors.As(err, &se) {
		return fmt.Errorf("%s error: %w", se.Kind, err)
	}
	return err
}

func ttlString(d time.Duration) string {
	if d <= 0 {
		return "none"
	}
	return d.String()
}
