/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/todolist-app/server/config"
	"github.com/todolist-app/server/internal/mq"
	"github.com/todolist-app/server/types"
)

// eventsCmd represents the events command.
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect activity events",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print activity events as they are published",
	Long: `Subscribes to EVENTS_CHANNEL on the broker selected by MQ_BACKEND
and logs every event until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		broker, err := mq.Open(ctx, cfg.Events)
		if err != nil {
			return err
		}
		if broker == nil {
			return errors.New("MQ_BACKEND is not set")
		}
		defer broker.Close()

		log.Printf("tailing %s via %s", cfg.Events.Channel, cfg.Events.Backend)
		err = broker.Subscribe(ctx, cfg.Events.Channel, logEvent)
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)
}

func logEvent(ctx context.Context, msg mq.Message) error {
	var event types.Event
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		// Redelivering a malformed payload will not fix it.
		log.Printf("skip message %s: %v", msg.ID, err)
		return nil
	}
	log.Println(describeEvent(event))
	return nil
}

func describeEvent(event types.Event) string {
	switch event.Type {
	case types.EventUserRenamed:
		return fmt.Sprintf("%s: %s -> %s", event.Type, event.OldUsername, event.Username)
	case types.EventListSeeded:
		return fmt.Sprintf("%s: %s (%d items)", event.Type, event.Username, event.Count)
	case types.EventItemAdded:
		return fmt.Sprintf("%s: %s %s %q", event.Type, event.Username, event.ItemID, event.ItemName)
	case types.EventItemDeleted:
		return fmt.Sprintf("%s: %s %s", event.Type, event.Username, event.ItemID)
	default:
		return fmt.Sprintf("%s: %s", event.Type, event.Username)
	}
}
