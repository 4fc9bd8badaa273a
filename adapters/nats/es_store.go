package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/codewandler/qpool-go/core/es"
)

const (
	defaultStreamName    = "QPOOL_ES"
	defaultSubjectPrefix = "qpool.es"
	fetchBatchSize       = 100
	fetchMaxWait         = 2 * time.Second
)

type EventStoreConfig struct {
	Connect       Connector    // Connect creates the NATS connection. If nil, ConnectDefault() is used.
	Log           *slog.Logger // Log for diagnostics (optional)
	StreamName    string
	SubjectPrefix string // events of one aggregate go to <prefix>.<type>.<id>
	MemoryStorage bool
}

// EventStore keeps every aggregate stream on its own subject. One Append is
// one message (a commit carrying all envelopes of the batch), published with
// an expected last subject sequence, which makes the append atomic and
// conditional. Envelope.Seq is the stream sequence of the commit.
type EventStore struct {
	js            jetstream.JetStream
	stream        jetstream.Stream
	closeNc       closeFunc
	log           *slog.Logger
	streamName    string
	subjectPrefix string
}

type commit struct {
	Events []es.Envelope `json:"events"`
}

func NewEventStore(ctx context.Context, cfg EventStoreConfig) (*EventStore, error) {
	doConnect := cfg.Connect
	if doConnect == nil {
		doConnect = ConnectDefault()
	}

	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	streamName := strings.ToUpper(cfg.StreamName)
	if streamName == "" {
		streamName = defaultStreamName
	}
	subjectPrefix := strings.TrimSuffix(cfg.SubjectPrefix, ".")
	if subjectPrefix == "" {
		subjectPrefix = defaultSubjectPrefix
	}
	storage := jetstream.FileStorage
	if cfg.MemoryStorage {
		storage = jetstream.MemoryStorage
	}

	nc, closeNc, err := doConnect()
	if err != nil {
		return nil, err
	}
	js, err := jetstream.New(nc)
	if err != nil {
		closeNc()
		return nil, err
	}

	log = log.With(
		slog.String("store", "nats_js"),
		slog.String("stream", streamName),
		slog.String("subject_prefix", subjectPrefix),
	)

	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       streamName,
		Subjects:   []string{subjectPrefix + ".>"},
		Storage:    storage,
		Retention:  jetstream.LimitsPolicy,
		DenyDelete: true,
		DenyPurge:  true,
		Duplicates: time.Minute,
	})
	if err != nil {
		closeNc()
		return nil, fmt.Errorf("ensure stream %s: %w", streamName, err)
	}
	log.Debug("stream ensured")

	return &EventStore{
		js:            js,
		stream:        stream,
		closeNc:       closeNc,
		log:           log,
		streamName:    streamName,
		subjectPrefix: subjectPrefix,
	}, nil
}

func (e *EventStore) Close() error {
	e.closeNc()
	e.log.Debug("closed event store")
	return nil
}

func (e *EventStore) subjectForAggregate(aggType, aggID string) string {
	return e.subjectPrefix + "." + aggType + "." + aggID
}

// lastCommit returns the most recent commit on subject and its stream
// sequence, or nil when the subject is empty.
func (e *EventStore) lastCommit(ctx context.Context, subject string) (*commit, uint64, error) {
	lm, err := e.stream.GetLastMsgForSubject(ctx, subject)
	if err != nil {
		if errors.Is(err, jetstream.ErrMsgNotFound) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("last message for %q: %w", subject, err)
	}
	c, err := decodeCommit(lm.Data, lm.Sequence)
	if err != nil {
		return nil, 0, err
	}
	return c, lm.Sequence, nil
}

func decodeCommit(data []byte, seq uint64) (*commit, error) {
	c := &commit{}
	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("decode commit at seq %d: %w", seq, err)
	}
	for i := range c.Events {
		c.Events[i].Seq = seq
	}
	return c, nil
}

func (c *commit) lastVersion() es.Version {
	if len(c.Events) == 0 {
		return 0
	}
	return c.Events[len(c.Events)-1].Version
}

func (e *EventStore) Load(
	ctx context.Context,
	aggType string,
	aggID string,
	opts ...es.StoreLoadOption,
) ([]es.Envelope, error) {
	if aggType == "" {
		return nil, errors.New("aggregate type is empty")
	}
	if aggID == "" {
		return nil, errors.New("aggregate id is empty")
	}

	var (
		loadOpts = es.NewStoreLoadOptions(opts...)
		subject  = e.subjectForAggregate(aggType, aggID)
		out      = make([]es.Envelope, 0)
		keep     = func(c *commit) {
			for _, env := range c.Events {
				if env.Version >= loadOpts.StartVersion {
					out = append(out, env)
				}
			}
		}
	)

	last, endSeq, err := e.lastCommit(ctx, subject)
	if err != nil || last == nil {
		return out, err
	}
	if len(last.Events) > 0 && last.Events[0].Version <= loadOpts.StartVersion {
		keep(last)
		return out, nil
	}

	cc, err := e.stream.OrderedConsumer(ctx, jetstream.OrderedConsumerConfig{
		DeliverPolicy:  jetstream.DeliverAllPolicy,
		FilterSubjects: []string{subject},
	})
	if err != nil {
		return nil, err
	}

	err = e.fetchCommits(ctx, cc, endSeq, func(c *commit) bool {
		keep(c)
		return true
	})
	if err != nil {
		return nil, err
	}

	e.log.Debug(
		"loaded",
		slog.Group("agg", slog.String("type", aggType), slog.String("id", aggID)),
		loadOpts.StartVersion.SlogAttrWithKey("start_version"),
		slog.Int("num_events", len(out)),
	)
	return out, nil
}

// fetchCommits reads commits from cc until the one at endSeq was handled or
// handle returns false.
func (e *EventStore) fetchCommits(
	ctx context.Context,
	cc jetstream.Consumer,
	endSeq uint64,
	handle func(*commit) bool,
) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch, err := cc.Fetch(fetchBatchSize, jetstream.FetchMaxWait(fetchMaxWait))
		if err != nil {
			return err
		}

		received := 0
		for msg := range batch.Messages() {
			received++
			md, err := msg.Metadata()
			if err != nil {
				return err
			}
			c, err := decodeCommit(msg.Data(), md.Sequence.Stream)
			if err != nil {
				return err
			}
			if !handle(c) || md.Sequence.Stream >= endSeq {
				return nil
			}
		}
		if err := batch.Error(); err != nil && !errors.Is(err, natsgo.ErrTimeout) {
			return err
		}
		if received == 0 {
			return fmt.Errorf("stream %s ended before seq %d", e.streamName, endSeq)
		}
	}
}

func (e *EventStore) Append(
	ctx context.Context,
	aggType string,
	aggID string,
	expectedVersion es.Version,
	events []es.Envelope,
) (*es.StoreAppendResult, error) {
	if err := es.CheckAppend(aggType, aggID, expectedVersion, events); err != nil {
		return nil, err
	}

	subject := e.subjectForAggregate(aggType, aggID)
	last, lastSubjectSeq, err := e.lastCommit(ctx, subject)
	if err != nil {
		return nil, err
	}
	var stored es.Version
	if last != nil {
		stored = last.lastVersion()
	}
	if stored != expectedVersion {
		return nil, es.ConflictError(aggType, aggID, expectedVersion, stored)
	}

	batch := make([]es.Envelope, len(events))
	copy(batch, events)
	for i := range batch {
		batch[i].Seq = 0
	}

	msg := natsgo.NewMsg(subject)
	msg.Header.Set("x-aggregate-type", aggType)
	msg.Header.Set("x-aggregate-id", aggID)
	msg.Header.Set("x-last-version", strconv.FormatUint(events[len(events)-1].Version.Uint64(), 10))
	msg.Data, err = json.Marshal(commit{Events: batch})
	if err != nil {
		return nil, err
	}

	// a writer that raced us between the read above and this publish moves
	// the subject sequence and the server rejects the message
	ack, err := e.js.PublishMsg(
		ctx,
		msg,
		jetstream.WithExpectLastSequencePerSubject(lastSubjectSeq),
		jetstream.WithMsgID(events[0].ID),
	)
	if err != nil {
		var apiErr *jetstream.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence {
			return nil, fmt.Errorf("%w: %s/%s changed since version %d", es.ErrConcurrencyConflict, aggType, aggID, expectedVersion)
		}
		return nil, fmt.Errorf("publish to %s: %w", subject, err)
	}
	if ack.Duplicate {
		return nil, fmt.Errorf("%w: commit %s already stored", es.ErrConcurrencyConflict, events[0].ID)
	}

	e.log.Debug(
		"append",
		slog.Group("agg", slog.String("type", aggType), slog.String("id", aggID)),
		slog.Uint64("seq", ack.Sequence),
		slog.Int("num_events", len(events)),
	)
	return &es.StoreAppendResult{LastSeq: ack.Sequence}, nil
}

// ReadAll implements es.Feed. Whole commits are returned, so a result may
// exceed limit by the size of the last commit.
func (e *EventStore) ReadAll(ctx context.Context, afterSeq uint64, limit int) ([]es.Envelope, error) {
	info, err := e.stream.Info(ctx)
	if err != nil {
		return nil, err
	}
	endSeq := info.State.LastSeq
	if endSeq <= afterSeq {
		return nil, nil
	}

	cc, err := e.stream.OrderedConsumer(ctx, jetstream.OrderedConsumerConfig{
		DeliverPolicy:  jetstream.DeliverByStartSequencePolicy,
		OptStartSeq:    afterSeq + 1,
		FilterSubjects: []string{e.subjectPrefix + ".>"},
	})
	if err != nil {
		return nil, err
	}

	var out []es.Envelope
	err = e.fetchCommits(ctx, cc, endSeq, func(c *commit) bool {
		out = append(out, c.Events...)
		return limit <= 0 || len(out) < limit
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

var (
	_ es.EventStore = (*EventStore)(nil)
	_ es.Feed       = (*EventStore)(nil)
)
