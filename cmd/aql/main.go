// Command aql is an interactive command-line client for an aerospike-go
// cluster: put, get, scan, and info subcommands over the Client in the
// parent module, replacing a pair of HTTP server binaries with a single
// client-side tool, the way cuemby-warren's "warren" binary wraps its
// manager/worker client in one cobra root command.
//
// Example usage:
//
//	aql put -H 127.0.0.1:3000 test users alice name=Alice age=30
//	aql get -H 127.0.0.1:3000 test users alice
//	aql scan -H 127.0.0.1:3000 test users
//	aql info -H 127.0.0.1:3000
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	aerospike "github.com/dreamware/aerospike-go"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "aql",
	Short: "aql - a command-line client for an aerospike-go cluster",
	Long: `aql is a thin interactive client over the aerospike-go Client:
put a record, get one back, scan a set, or print cluster info, all from
the command line.`,
}

func init() {
	rootCmd.PersistentFlags().StringSliceP("host", "H", []string{"127.0.0.1:3000"}, "seed host:port (repeatable)")
	rootCmd.PersistentFlags().Duration("timeout", 2*time.Second, "connect/request timeout")

	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(infoCmd)
}

var putCmd = &cobra.Command{
	Use:   "put NAMESPACE SET USERKEY BIN=VALUE [BIN=VALUE ...]",
	Short: "write a record",
	Args:  cobra.MinimumNArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		namespace, setName, userKey, binArgs := args[0], args[1], args[2], args[3:]

		bins, err := parseBins(binArgs)
		if err != nil {
			return err
		}

		c, cleanup, err := connect(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		ctx, cancel := requestContext(cmd)
		defer cancel()

		key, err := aerospike.NewKey(namespace, setName, parseUserValue(userKey))
		if err != nil {
			return fmt.Errorf("aql: %w", err)
		}

		wp := aerospike.NewWritePolicy(0)
		if err := c.Put(ctx, key, bins, wp); err != nil {
			return fmt.Errorf("aql: put: %w", err)
		}

		fmt.Printf("OK %s %s %s\n", namespace, setName, userKey)
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get NAMESPACE SET USERKEY [BIN ...]",
	Short: "read a record",
	Args:  cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		namespace, setName, userKey, binNames := args[0], args[1], args[2], args[3:]

		c, cleanup, err := connect(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		ctx, cancel := requestContext(cmd)
		defer cancel()

		key, err := aerospike.NewKey(namespace, setName, parseUserValue(userKey))
		if err != nil {
			return fmt.Errorf("aql: %w", err)
		}

		rec, err := c.Get(ctx, key, binNames, aerospike.NewReadPolicy())
		if err != nil {
			return fmt.Errorf("aql: get: %w", err)
		}

		fmt.Printf("generation: %d, expiration: %d\n", rec.Generation, rec.Expiration)
		for name, v := range rec.Bins {
			fmt.Printf("  %s: %v\n", name, v)
		}
		return nil
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan NAMESPACE SET",
	Short: "scan every record in a set",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		namespace, setName := args[0], args[1]

		c, cleanup, err := connect(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		ctx, cancel := requestContext(cmd)
		defer cancel()

		it := c.ScanPartitions(ctx, namespace, setName, aerospike.NewScanPolicy())
		defer it.Close()

		count := 0
		for {
			r, ok := it.Next(ctx)
			if !ok {
				break
			}
			if r.Err != nil {
				return fmt.Errorf("aql: scan: %w", r.Err)
			}
			fmt.Printf("%x %v\n", r.Key.Digest(), r.Record.Bins)
			count++
		}
		fmt.Printf("%d records\n", count)
		return nil
	},
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "print the seed hosts and connected cluster nodes",
	RunE: func(cmd *cobra.Command, args []string) error {
		hosts, err := cmd.Flags().GetStringSlice("host")
		if err != nil {
			return err
		}

		c, cleanup, err := connect(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		fmt.Printf("seeds: %s\n", strings.Join(hosts, ","))
		fmt.Printf("default partitions: %d\n", aerospike.DefaultNumPartitions)
		fmt.Println("nodes:")
		for _, n := range c.Nodes() {
			fmt.Printf("  %s\n", n)
		}
		return nil
	},
}

// connect builds a Client from the --host/--timeout persistent flags.
func connect(cmd *cobra.Command) (*aerospike.Client, func(), error) {
	hostStrs, err := cmd.Flags().GetStringSlice("host")
	if err != nil {
		return nil, nil, err
	}
	timeout, err := cmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, nil, err
	}

	hosts := make([]aerospike.Host, len(hostStrs))
	for i, s := range hostStrs {
		h, err := parseHost(s)
		if err != nil {
			return nil, nil, fmt.Errorf("aql: %w", err)
		}
		hosts[i] = h
	}

	cp := aerospike.NewClientPolicy()
	cp.ConnectTimeout = timeout

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	c, err := aerospike.NewClient(ctx, cp, hosts...)
	if err != nil {
		return nil, nil, fmt.Errorf("aql: connect: %w", err)
	}
	return c, c.Close, nil
}

func requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	return context.WithTimeout(context.Background(), timeout)
}

func parseHost(s string) (aerospike.Host, error) {
	idx := strings.LastIndex(s, ":")
	if idx < 0 {
		return aerospike.Host{}, fmt.Errorf("host %q must be in host:port form", s)
	}
	port, err := strconv.Atoi(s[idx+1:])
	if err != nil {
		return aerospike.Host{}, fmt.Errorf("host %q has a non-numeric port: %w", s, err)
	}
	return aerospike.NewHost(s[:idx], port), nil
}

// parseUserValue treats the key argument as an int64 when it parses as one,
// otherwise as a string; aql has no syntax for bytes or bool record keys.
func parseUserValue(s string) aerospike.Value {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	return s
}

// parseBins turns "name=value" arguments into a bin map. A value that
// parses as an int64 is stored as one; everything else is stored as a
// string, matching parseUserValue's rule for consistency.
func parseBins(args []string) (map[string]aerospike.Value, error) {
	bins := make(map[string]aerospike.Value, len(args))
	for _, a := range args {
		idx := strings.Index(a, "=")
		if idx < 0 {
			return nil, fmt.Errorf("aql: bin argument %q must be BIN=VALUE", a)
		}
		name, value := a[:idx], a[idx+1:]
		bins[name] = parseUserValue(value)
	}
	return bins, nil
}
