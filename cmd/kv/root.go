package kv

import (
	"github.com/ValentinKolb/dFacade/cmd/util"
	"github.com/ValentinKolb/dFacade/lib/kv"
	"github.com/ValentinKolb/dFacade/lib/kv/redis"
	"github.com/spf13/cobra"
	"time"
)

var (
	store *kv.Store

	// KeyValueCommands represents the KV command group
	KeyValueCommands = &cobra.Command{
		Use:                "kv",
		Short:              "Perform key-value operations on redis",
		PersistentPreRunE:  setupKVStore,
		PersistentPostRunE: closeKVStore,
	}
)

func init() {
	util.SetupConfigFlags(KeyValueCommands)

	KeyValueCommands.PersistentFlags().Int("db", 0, util.WrapString("Index of the logical redis database"))
	KeyValueCommands.PersistentFlags().Duration("cache-ttl", 30*time.Minute, util.WrapString("Time after which a cached value expires"))
	KeyValueCommands.PersistentFlags().Int("cache-size", 100, util.WrapString("Maximum number of cached values"))

	KeyValueCommands.AddCommand(setCmd)
	KeyValueCommands.AddCommand(getCmd)
	KeyValueCommands.AddCommand(delCmd)
	KeyValueCommands.AddCommand(hasCmd)
	KeyValueCommands.AddCommand(publishCmd)
	KeyValueCommands.AddCommand(subscribeCmd)
	KeyValueCommands.AddCommand(perfTestCmd)
}

// setupKVStore connects the key-value facade
func setupKVStore(cmd *cobra.Command, _ []string) error {
	reg, err := util.Setup(cmd)
	if err != nil {
		return err
	}

	store, err = redis.Open(cmd.Context(), reg, util.V.GetInt("db"),
		kv.WithCacheTTL(util.V.GetDuration("cache-ttl")),
		kv.WithCacheSize(util.V.GetInt("cache-size")),
	)
	return err
}

func closeKVStore(_ *cobra.Command, _ []string) error {
	if store == nil {
		return nil
	}
	util.WriteMetrics(store.Metrics())
	return store.Close()
}
