package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"esbridge/client"
	"esbridge/internal/config"
)

var requestTimeout time.Duration

var requestCmd = &cobra.Command{
	Use:   "request <method> [json-kwargs]",
	Short: "Call an Elasticsearch API method through the bridge",
	Long: `Sends a request to the bridge's topic for <method> and prints the reply.
Keyword arguments are given as one JSON object, for example:

  esbridge request get '{"index":"event-index","id":"E1"}'`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kwargs := map[string]any{}
		if len(args) == 2 {
			if err := json.Unmarshal([]byte(args[1]), &kwargs); err != nil {
				return fmt.Errorf("kwargs must be a JSON object: %w", err)
			}
		}
		kc, err := dial()
		if err != nil {
			return err
		}
		defer func() { _ = kc.Close() }()

		ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
		defer cancel()
		res, err := kc.Call(ctx, args[0], kwargs)
		return printReply(cmd, res, err)
	},
}

// printReply prints a call result. A remote failure is printed too and then
// returned, so the command exits non-zero.
func printReply(cmd *cobra.Command, res any, err error) error {
	var re *client.RemoteError
	if errors.As(err, &re) {
		if perr := printJSON(cmd, map[string]any{
			"error": map[string]any{
				"message": re.Message, "class": re.Class, "module": re.Module,
				"status_code": re.StatusCode, "error": re.Code, "info": re.Info,
			},
		}); perr != nil {
			return perr
		}
		return re
	}
	if err != nil {
		return err
	}
	return printJSON(cmd, res)
}

var eventCmd = &cobra.Command{
	Use:   "event <topic> <payload>",
	Short: "Publish an event payload to a topic",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kc, err := dial()
		if err != nil {
			return err
		}
		defer func() { _ = kc.Close() }()

		ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
		defer cancel()
		if err := kc.SendEvent(ctx, args[0], []byte(args[1])); err != nil {
			return err
		}
		cmd.Printf("event published to %s\n", args[0])
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{requestCmd, eventCmd} {
		c.Flags().DurationVar(&requestTimeout, "timeout", 30*time.Second, "how long to wait")
		rootCmd.AddCommand(c)
	}
}

// dial reads only the bus settings, so a client config needs no servers.
func dial() (*client.KafkaClient, error) {
	cfg, err := config.LoadBus(configPath)
	if err != nil {
		return nil, err
	}
	return client.Dial(cfg.Kafka, client.Options{
		ServiceTopic:    cfg.General.ServiceTopic,
		ServiceUniqueID: cfg.General.ServiceUniqueID,
		ReplyTopic:      cfg.General.ReplyTopic,
	})
}

func printJSON(cmd *cobra.Command, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	cmd.Println(string(out))
	return nil
}
