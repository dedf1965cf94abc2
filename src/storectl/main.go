// Copyright 2024 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command storectl inspects and maintains the storefront's browsing-context
// state file.
package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mattressco/storefront/src/frontend/api"
	"github.com/mattressco/storefront/src/frontend/cart"
	"github.com/mattressco/storefront/src/frontend/storage"
	"github.com/mattressco/storefront/src/frontend/wishlist"
)

var (
	dbPath  string
	verbose bool
	raw     bool
	maxIdle time.Duration

	log = logrus.New()
)

var rootCmd = &cobra.Command{
	Use:   "storectl",
	Short: "Inspect and maintain storefront browsing-context state",
	Long: `storectl works on the bbolt file the storefront keeps its cart,
wishlist and session state in (STATE_DB). Stop the storefront first: the
file is opened with an exclusive lock.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.Out = cmd.ErrOrStderr()
		log.Level = logrus.WarnLevel
		if verbose {
			log.Level = logrus.DebugLevel
		}
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored browsing contexts",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var showCmd = &cobra.Command{
	Use:   "show <context-id>",
	Short: "Show the cart, wishlist and session of a browsing context",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var clearCmd = &cobra.Command{
	Use:   "clear <context-id>...",
	Short: "Delete everything stored for the given browsing contexts",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runClear,
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete browsing contexts idle for longer than --max-idle",
	Args:  cobra.NoArgs,
	RunE:  runPrune,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", envOr("STATE_DB", "storefront.db"), "state file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	showCmd.Flags().BoolVar(&raw, "raw", false, "print stored values verbatim")
	pruneCmd.Flags().DurationVar(&maxIdle, "max-idle", 720*time.Hour, "idle time after which a context is dropped")

	rootCmd.AddCommand(listCmd, showCmd, clearCmd, pruneCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func openDB() (*storage.BoltDB, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, errors.Wrapf(err, "state file %s", dbPath)
	}
	return storage.OpenBolt(dbPath, log)
}

func runList(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	contexts, err := db.Contexts()
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CONTEXT\tKEYS\tLAST WRITE")
	for _, c := range contexts {
		touched := "-"
		if !c.Touched.IsZero() {
			touched = c.Touched.Local().Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%d\t%s\n", c.ID, c.Keys, touched)
	}
	return w.Flush()
}

func runShow(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	id := args[0]
	values, err := db.Dump(id)
	if err != nil {
		return err
	}
	if len(values) == 0 {
		return errors.Errorf("no state stored for context %s", id)
	}
	out := cmd.OutOrStdout()
	if raw {
		printRaw(out, values)
		return nil
	}

	store := storage.New(db.Scope(id), log)
	printSession(out, store)
	printCart(out, storage.ReadList[cart.LineItem](store, storage.CartKey))
	printWishlist(out, storage.ReadList[wishlist.Entry](store, storage.WishlistKey))
	return nil
}

func runClear(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	for _, id := range args {
		if err := db.DropContext(id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "cleared %s\n", id)
	}
	return nil
}

func runPrune(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := db.Prune(maxIdle)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "pruned %d context(s) idle for more than %v\n", n, maxIdle)
	return nil
}

func printRaw(w io.Writer, values map[string][]byte) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%s = %s\n", k, values[k])
	}
}

func printSession(w io.Writer, store *storage.Store) {
	u, ok := storage.ReadValue[api.User](store, storage.UserKey)
	if !ok {
		fmt.Fprintln(w, "session: anonymous")
		return
	}
	_, hasToken := storage.ReadValue[string](store, storage.TokenKey)
	fmt.Fprintf(w, "session: %s <%s> role=%s token=%v\n", u.Name, u.Email, u.Role, hasToken)
}

func printCart(w io.Writer, items []cart.LineItem) {
	totals := cart.Compute(items)
	fmt.Fprintf(w, "cart: %d item(s), total %.2f\n", totals.ItemCount, totals.Total)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, it := range items {
		fmt.Fprintf(tw, "  %s\t%s\t%s/%s\tx%d\t%.2f\n", it.ProductID, it.Name, it.Size, it.Firmness, it.Quantity, it.UnitPrice)
	}
	tw.Flush()
}

func printWishlist(w io.Writer, entries []wishlist.Entry) {
	fmt.Fprintf(w, "wishlist: %d product(s)\n", len(entries))
	for _, e := range entries {
		fmt.Fprintf(w, "  %s\t%s\n", e.ProductID, e.Name)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
