package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// EmailJob is one rendered message waiting for a delivery worker.
type EmailJob struct {
	To      string
	Subject string
	Body    string
}

type Worker struct {
	ID         int
	WorkerPool chan chan EmailJob
	JobChannel chan EmailJob
	Logger     *slog.Logger
}

func NewWorker(id int, workerPool chan chan EmailJob, logger *slog.Logger) *Worker {
	return &Worker{
		ID:         id,
		WorkerPool: workerPool,
		JobChannel: make(chan EmailJob),
		Logger:     logger,
	}
}

func (w *Worker) Start(ctx context.Context, wg *sync.WaitGroup, processFunc func(EmailJob)) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		for {
			w.WorkerPool <- w.JobChannel

			select {
			case job := <-w.JobChannel:
				w.Logger.Debug("worker processing email", "worker_id", w.ID, "to", job.To)
				processFunc(job)
			case <-ctx.Done():
				w.Logger.Debug("worker shutting down", "worker_id", w.ID)
				return
			}
		}
	}()
}

// Client relays rendered emails to an HTTP delivery API through a bounded
// worker pool. Enqueueing never blocks past the queue handoff, so a slow or
// failing mail provider cannot stall an auth operation.
type Client struct {
	apiURL      string
	apiKey      string
	senderName  string
	senderEmail string
	sendTimeout time.Duration
	enabled     bool
	logger      *slog.Logger

	jobQueue   chan EmailJob
	workerPool chan chan EmailJob
	maxWorkers int
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	once       sync.Once
}

type Config struct {
	Enabled      bool
	APIURL       string
	APIKey       string
	SenderName   string
	SenderEmail  string
	SendTimeout  time.Duration
	MaxWorkers   int
	JobQueueSize int
}

func NewClient(config Config, logger *slog.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	maxWorkers := config.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 5
	}

	jobQueueSize := config.JobQueueSize
	if jobQueueSize <= 0 {
		jobQueueSize = 100
	}

	sendTimeout := config.SendTimeout
	if sendTimeout <= 0 {
		sendTimeout = 10 * time.Second
	}

	client := &Client{
		apiURL:      config.APIURL,
		apiKey:      config.APIKey,
		senderName:  config.SenderName,
		senderEmail: config.SenderEmail,
		sendTimeout: sendTimeout,
		enabled:     config.Enabled && config.APIURL != "",
		logger:      logger,

		maxWorkers: maxWorkers,
		jobQueue:   make(chan EmailJob, jobQueueSize),
		workerPool: make(chan chan EmailJob, maxWorkers),
		ctx:        ctx,
		cancel:     cancel,
	}

	client.startWorkerPool()

	return client
}

func (c *Client) startWorkerPool() {
	c.once.Do(func() {
		for i := 0; i < c.maxWorkers; i++ {
			worker := NewWorker(i, c.workerPool, c.logger)
			worker.Start(c.ctx, &c.wg, c.processEmailJob)
		}

		c.wg.Add(1)
		go c.dispatch()

		c.logger.Info("mailer worker pool started",
			"max_workers", c.maxWorkers,
			"queue_size", cap(c.jobQueue),
			"enabled", c.enabled)
	})
}

func (c *Client) dispatch() {
	defer c.wg.Done()

	for {
		select {
		case job := <-c.jobQueue:
			select {
			case jobChannel := <-c.workerPool:
				select {
				case jobChannel <- job:

				case <-c.ctx.Done():
					c.logger.Info("mail dispatcher shutting down")
					return
				}
			case <-c.ctx.Done():
				c.logger.Info("mail dispatcher shutting down")
				return
			}
		case <-c.ctx.Done():
			c.logger.Info("mail dispatcher shutting down")
			return
		}
	}
}

// Send queues a message for delivery. With no delivery endpoint configured
// the message is logged and dropped. A full queue is reported to the caller,
// who is expected to log and move on.
func (c *Client) Send(job EmailJob) error {
	if !c.enabled {
		c.logger.Info("mailer disabled, dropping email", "to", job.To, "subject", job.Subject)
		return nil
	}

	select {
	case c.jobQueue <- job:
		c.logger.Debug("email queued", "to", job.To, "subject", job.Subject, "queue_length", len(c.jobQueue))
		return nil
	default:
		c.logger.Warn("mail queue full, dropping email", "to", job.To, "queue_capacity", cap(c.jobQueue))
		return fmt.Errorf("mail queue full")
	}
}

func (c *Client) processEmailJob(job EmailJob) {
	if err := c.deliver(job); err != nil {
		c.logger.Error("email delivery failed", "to", job.To, "subject", job.Subject, "error", err)
		return
	}
	c.logger.Info("email delivered", "to", job.To, "subject", job.Subject)
}

func (c *Client) deliver(job EmailJob) error {
	payload := map[string]interface{}{
		"from": map[string]string{
			"email": c.senderEmail,
			"name":  c.senderName,
		},
		"to":      []map[string]string{{"email": job.To}},
		"subject": job.Subject,
		"text":    job.Body,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal email payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(c.ctx, c.sendTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	client := &http.Client{Timeout: c.sendTimeout}
	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("mail API returned status %d", resp.StatusCode)
	}

	return nil
}

// Shutdown stops accepting work and waits for in-flight deliveries up to
// the given timeout.
func (c *Client) Shutdown(timeout time.Duration) {
	c.logger.Info("shutting down mailer")
	c.cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("mailer shutdown complete")
	case <-time.After(timeout):
		c.logger.Warn("mailer shutdown timed out with deliveries in flight")
	}
}
