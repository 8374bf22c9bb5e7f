// events-tail follows one of the Appointly Kafka topics and prints each
// event to stdout; handy for checking that the outbox publishers and
// reminder runs emit what they should.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/segmentio/kafka-go"

	"github.com/appointly/appointly/libs/kafkax"
)

func main() {
	var (
		brokers = flag.String("brokers", getenv("KAFKA_BROKERS", "localhost:9092"), "comma-separated kafka brokers")
		topic   = flag.String("topic", getenv("TOPIC", "reminder.sent.v1"), "topic to follow")
		group   = flag.String("group", getenv("GROUP", ""), "consumer group (empty tails from the last offset without committing)")
	)
	flag.Parse()

	brokerList := kafkax.SplitBrokers(*brokers)
	if len(brokerList) == 0 {
		fatal("at least one kafka broker is required")
	}
	if strings.TrimSpace(*topic) == "" {
		fatal("topic is required")
	}

	cfg := kafka.ReaderConfig{
		Brokers: brokerList,
		Topic:   *topic,
	}
	if strings.TrimSpace(*group) != "" {
		cfg.GroupID = strings.TrimSpace(*group)
	} else {
		cfg.StartOffset = kafka.LastOffset
	}
	reader := kafka.NewReader(cfg)
	defer reader.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(os.Stderr, "tailing %s on %s\n", *topic, strings.Join(brokerList, ","))
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			fatal(err.Error())
		}
		meta := kafkax.ExtractEventMeta(msg)
		fmt.Printf("%s\t%s\tkey=%s\t%s\n", msg.Time.UTC().Format("2006-01-02T15:04:05Z"), meta.EventID, string(msg.Key), string(msg.Value))
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, "error: "+msg)
	os.Exit(1)
}
