package kv

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/dFacade/lib/codec"
	"github.com/spf13/cobra"
)

var (
	setCmd = &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Sets the value for a key",
		Long:  "Sets the value for a key. The value is stored as given, JSON objects and arrays are decoded again by get.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := store.Set(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Println("set successfully")
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			value, err := store.Get(cmd.Context(), key)
			if err != nil {
				return err
			}
			text, err := codec.Encode(value)
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, type=%T, value=%s\n", key, value, text)
			return nil
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [key...]",
		Short: "Deletes one or more keys",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deleted, err := store.Delete(cmd.Context(), args...)
			if err != nil {
				return err
			}
			fmt.Printf("deleted=%d\n", deleted)
			return nil
		},
	}
	hasCmd = &cobra.Command{
		Use:   "has [key]",
		Short: "Checks if a key exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			found, err := store.Exists(cmd.Context(), key)
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, found=%t\n", key, found)
			return nil
		},
	}
	publishCmd = &cobra.Command{
		Use:   "publish [channel] [message]",
		Short: "Publishes a message on a channel",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := store.Publish(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Println("published successfully")
			return nil
		},
	}
	subscribeCmd = &cobra.Command{
		Use:   "subscribe [channel...]",
		Short: "Prints the messages of one or more channels until interrupted",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			for _, channel := range args {
				err := store.Subscribe(ctx, channel, func(channel, message string) {
					fmt.Printf("channel=%s, message=%s\n", channel, message)
				})
				if err != nil {
					return err
				}
			}
			fmt.Printf("subscribed to %v, press ctrl+c to stop\n", args)
			<-ctx.Done()
			return store.Unsubscribe(context.Background(), args...)
		},
	}
)
