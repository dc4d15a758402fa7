package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"business-inventory/internal/common/logger"
)

const remoteTimeout = 10 * time.Second

// Publisher is the subset of the SNS client used here.
type Publisher interface {
	Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error)
}

// Mailer is the subset of the SES client used here.
type Mailer interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error)
}

// async runs deliveries off the caller's goroutine. Close waits for pending ones.
type async struct {
	wg  sync.WaitGroup
	log logger.Logger
}

func (a *async) run(name string, fn func(ctx context.Context) error) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), remoteTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			a.log.Warn("alert delivery failed", map[string]interface{}{
				"sink":  name,
				"error": err.Error(),
			})
		}
	}()
}

func (a *async) Close() {
	a.wg.Wait()
}

// SNSSink publishes each alert as a JSON message to a topic.
type SNSSink struct {
	Sink
	async
	client   Publisher
	topicARN string
}

func NewSNSSink(client Publisher, topicARN string, log logger.Logger) *SNSSink {
	s := &SNSSink{client: client, topicARN: topicARN}
	s.async.log = log
	s.Sink = Func(s.publish)
	return s
}

func (s *SNSSink) publish(a Alert) {
	s.run("sns", func(ctx context.Context) error {
		body, err := json.Marshal(a)
		if err != nil {
			return err
		}
		_, err = s.client.Publish(ctx, &sns.PublishInput{
			TopicArn: awssdk.String(s.topicARN),
			Subject:  awssdk.String(truncate(a.Title, 100)),
			Message:  awssdk.String(string(body)),
		})
		return err
	})
}

// SESSink emails error and info alerts to one recipient. Success alerts are not mailed.
type SESSink struct {
	Sink
	async
	client Mailer
	from   string
	to     string
}

func NewSESSink(client Mailer, from, to string, log logger.Logger) *SESSink {
	s := &SESSink{client: client, from: from, to: to}
	s.async.log = log
	s.Sink = Func(s.send)
	return s
}

func (s *SESSink) send(a Alert) {
	if a.Level == LevelSuccess {
		return
	}
	s.run("ses", func(ctx context.Context) error {
		_, err := s.client.SendEmail(ctx, &ses.SendEmailInput{
			Source:      awssdk.String(s.from),
			Destination: &sestypes.Destination{ToAddresses: []string{s.to}},
			Message: &sestypes.Message{
				Subject: &sestypes.Content{
					Data:    awssdk.String(fmt.Sprintf("[%s] %s", a.Level, a.Title)),
					Charset: awssdk.String("UTF-8"),
				},
				Body: &sestypes.Body{
					Text: &sestypes.Content{
						Data:    awssdk.String(a.Description),
						Charset: awssdk.String("UTF-8"),
					},
				},
			},
		})
		return err
	})
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
