package lock

import (
	"fmt"
	"github.com/ValentinKolb/dFacade/cmd/util"
	"github.com/ValentinKolb/dFacade/lib/kv/redis"
	"github.com/ValentinKolb/dFacade/lib/lockmgr"
	"github.com/spf13/cobra"
	"time"
)

var (
	backend        *redis.Backend
	lockMgr        lockmgr.ILockManager
	acquireTimeout time.Duration

	// LockCommands represents the lock command group
	LockCommands = &cobra.Command{
		Use:                "lock",
		Short:              "Perform lock operations on redis",
		PersistentPreRunE:  setupLockMgr,
		PersistentPostRunE: closeLockMgr,
	}

	// acquireCmd represents the acquire command
	acquireCmd = &cobra.Command{
		Use:   "acquire [key]",
		Short: "Acquire a lock",
		Args:  cobra.ExactArgs(1),
		RunE:  runAcquire,
	}

	// releaseCmd represents the release command
	releaseCmd = &cobra.Command{
		Use:   "release [key] [ownerID]",
		Short: "Release a previously acquired lock",
		Long:  "Release a lock using the key and owner ID. The owner ID is the one printed by the acquire command.",
		Args:  cobra.ExactArgs(2),
		RunE:  runRelease,
	}
)

func init() {
	LockCommands.AddCommand(acquireCmd)
	LockCommands.AddCommand(releaseCmd)

	util.SetupConfigFlags(LockCommands)
	LockCommands.PersistentFlags().Int("db", 0, util.WrapString("Index of the logical redis database"))

	acquireCmd.Flags().DurationVar(&acquireTimeout, "timeout", 30*time.Second, "Lock timeout (0 for no timeout)")
}

// setupLockMgr connects to redis and creates the lock manager
func setupLockMgr(cmd *cobra.Command, _ []string) error {
	reg, err := util.Setup(cmd)
	if err != nil {
		return err
	}

	backend, err = redis.Connect(cmd.Context(), reg, util.V.GetInt("db"))
	if err != nil {
		return err
	}
	lockMgr = lockmgr.NewLockManager(backend)
	return nil
}

func closeLockMgr(_ *cobra.Command, _ []string) error {
	if backend == nil {
		return nil
	}
	return backend.Close()
}

// runAcquire handles the acquire lock command
func runAcquire(cmd *cobra.Command, args []string) error {
	key := args[0]

	acquired, ownerID, err := lockMgr.AcquireLock(cmd.Context(), key, acquireTimeout)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}

	if !acquired {
		fmt.Printf("acquired=false\n")
		return nil
	}
	fmt.Printf("acquired=true, ownerId=%s\n", ownerID)
	return nil
}

// runRelease handles the release lock command
func runRelease(cmd *cobra.Command, args []string) error {
	released, err := lockMgr.ReleaseLock(cmd.Context(), args[0], args[1])
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}

	fmt.Printf("released=%v\n", released)
	return nil
}
