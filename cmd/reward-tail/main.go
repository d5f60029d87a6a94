// reward-tail follows the reward topic and prints every milestone
// event. Operational tool for checking that settlement emits rewards.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/IBM/sarama"

	"github.com/kickin-server/internal/domain"
)

func main() {
	brokers := flag.String("brokers", "localhost:9094", "Kafka brokers (comma-separated)")
	topic := flag.String("topic", "kickin-rewards", "Kafka topic")
	group := flag.String("group", "reward-tail", "Consumer group id")
	fromStart := flag.Bool("from-start", false, "Read the topic from the beginning")
	flag.Parse()

	config := sarama.NewConfig()
	config.Version = sarama.V3_0_0_0
	config.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	config.Consumer.Offsets.Initial = sarama.OffsetNewest
	if *fromStart {
		config.Consumer.Offsets.Initial = sarama.OffsetOldest
	}

	consumerGroup, err := sarama.NewConsumerGroup(strings.Split(*brokers, ","), *group, config)
	if err != nil {
		log.Fatalf("Failed to create consumer group: %v", err)
	}
	defer consumerGroup.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		cancel()
	}()

	fmt.Printf("tailing %s on %s\n", *topic, *brokers)

	handler := &tailHandler{}
	for {
		if err := consumerGroup.Consume(ctx, []string{*topic}, handler); err != nil {
			if err == sarama.ErrClosedConsumerGroup {
				return
			}
			log.Printf("consume error: %v", err)
		}
		if ctx.Err() != nil {
			return
		}
	}
}

type tailHandler struct{}

func (h *tailHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *tailHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *tailHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		var event domain.RewardEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			fmt.Printf("[%d@%d] unparseable: %s\n", msg.Partition, msg.Offset, msg.Value)
		} else {
			fmt.Printf("[%d@%d] user=%s wins=%d match=%s at=%s\n",
				msg.Partition, msg.Offset,
				event.UserID, event.Milestone, event.MatchID,
				event.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
			)
		}
		session.MarkMessage(msg, "")
	}
	return nil
}
