package simulator

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/chrisdamba/routesim/internal/cloudwriter"
	"github.com/chrisdamba/routesim/internal/models"
	"github.com/chrisdamba/routesim/internal/repositories"
	"github.com/chrisdamba/routesim/internal/simulator/producers"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"
)

type OutputDestination interface {
	WriteMessage(topic string, msg []byte) error
	Close() error
}

// partition decodes a result message and returns the hourly partition it
// belongs to, e.g. "year=2024/month=03/day=01/hour=08".
func partition(msg []byte) (ResultEvent, string, error) {
	var event ResultEvent
	if err := json.Unmarshal(msg, &event); err != nil {
		return event, "", err
	}
	if event.Timestamp == 0 {
		return event, "", fmt.Errorf("invalid timestamp")
	}
	eventTime := time.Unix(event.Timestamp, 0).UTC()
	year, month, day := eventTime.Date()
	return event, fmt.Sprintf("year=%d/month=%02d/day=%02d/hour=%02d", year, month, day, eventTime.Hour()), nil
}

type ConsoleOutput struct {
	w io.Writer
}

func NewConsoleOutput(w io.Writer) *ConsoleOutput {
	if w == nil {
		w = os.Stdout
	}
	return &ConsoleOutput{w: w}
}

func (c *ConsoleOutput) WriteMessage(topic string, msg []byte) error {
	if _, err := fmt.Fprintf(c.w, "[%s] %s\n", topic, msg); err != nil {
		return fmt.Errorf("failed to write to console: %w", err)
	}
	return nil
}

func (c *ConsoleOutput) Close() error { return nil }

type CSVOutput struct {
	basePath string
	folder   string
	files    map[string]*os.File
	writers  map[string]*csv.Writer
	headers  map[string][]string
}

func NewCSVOutput(basePath, folder string) *CSVOutput {
	return &CSVOutput{
		basePath: basePath,
		folder:   folder,
		files:    make(map[string]*os.File),
		writers:  make(map[string]*csv.Writer),
		headers:  make(map[string][]string),
	}
}

func (c *CSVOutput) WriteMessage(topic string, msg []byte) error {
	_, partitionPath, err := partition(msg)
	if err != nil {
		return err
	}
	var event map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(msg))
	dec.UseNumber()
	if err := dec.Decode(&event); err != nil {
		return err
	}

	fullPath := filepath.Join(c.basePath, c.folder, topic, partitionPath)
	fileKey := topic + "_" + partitionPath
	csvWriter, ok := c.writers[fileKey]
	if !ok {
		if err := os.MkdirAll(fullPath, os.ModePerm); err != nil {
			return err
		}
		file, err := os.Create(filepath.Join(fullPath, "data.csv"))
		if err != nil {
			return err
		}
		csvWriter = csv.NewWriter(file)
		c.files[fileKey] = file
		c.writers[fileKey] = csvWriter

		headers := make([]string, 0, len(event))
		for key := range event {
			headers = append(headers, key)
		}
		sort.Strings(headers)
		if err := csvWriter.Write(headers); err != nil {
			return err
		}
		c.headers[fileKey] = headers
	}

	row := make([]string, len(c.headers[fileKey]))
	for i, header := range c.headers[fileKey] {
		if value, ok := event[header]; ok {
			row[i] = fmt.Sprintf("%v", value)
		}
	}
	if err := csvWriter.Write(row); err != nil {
		return err
	}
	csvWriter.Flush()
	return csvWriter.Error()
}

func (c *CSVOutput) Close() error {
	var lastErr error
	for key, csvWriter := range c.writers {
		csvWriter.Flush()
		if err := csvWriter.Error(); err != nil {
			lastErr = err
		}
		if err := c.files[key].Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// JSONOutput writes newline delimited JSON.
type JSONOutput struct {
	basePath string
	folder   string
	files    map[string]*os.File
}

func NewJSONOutput(basePath, folder string) *JSONOutput {
	return &JSONOutput{
		basePath: basePath,
		folder:   folder,
		files:    make(map[string]*os.File),
	}
}

func (j *JSONOutput) WriteMessage(topic string, msg []byte) error {
	event, partitionPath, err := partition(msg)
	if err != nil {
		return err
	}

	fileKey := topic + "_" + partitionPath
	file, ok := j.files[fileKey]
	if !ok {
		fullPath := filepath.Join(j.basePath, j.folder, topic, partitionPath)
		if err := os.MkdirAll(fullPath, os.ModePerm); err != nil {
			return err
		}
		file, err = os.Create(filepath.Join(fullPath, "data.json"))
		if err != nil {
			return err
		}
		j.files[fileKey] = file
	}

	jsonData, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = file.Write(append(jsonData, '\n'))
	return err
}

func (j *JSONOutput) Close() error {
	var lastErr error
	for _, file := range j.files {
		if err := file.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// CloudParquetFile adapts a CloudWriter to parquet's write-only file source.
type CloudParquetFile struct {
	cloudWriter cloudwriter.CloudWriter
	offset      int64
}

func NewCloudParquetFile(cloudWriter cloudwriter.CloudWriter) *CloudParquetFile {
	return &CloudParquetFile{cloudWriter: cloudWriter}
}

// Open and Create return the receiver: the object is created on upload.
func (c *CloudParquetFile) Open(string) (source.ParquetFile, error)   { return c, nil }
func (c *CloudParquetFile) Create(string) (source.ParquetFile, error) { return c, nil }

func (c *CloudParquetFile) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		c.offset = offset
	case io.SeekCurrent:
		c.offset += offset
	default:
		return 0, fmt.Errorf("seek from end not supported for cloud storage")
	}
	return c.offset, nil
}

func (c *CloudParquetFile) Read([]byte) (int, error) {
	return 0, fmt.Errorf("read not supported for cloud storage")
}

func (c *CloudParquetFile) Write(p []byte) (int, error) {
	n, err := c.cloudWriter.Write(p)
	c.offset += int64(n)
	return n, err
}

func (c *CloudParquetFile) Close() error {
	return c.cloudWriter.Close()
}

type ParquetOutput struct {
	basePath           string
	folder             string
	mu                 sync.Mutex
	writers            map[string]*writer.ParquetWriter
	files              map[string]source.ParquetFile
	cloudWriterFactory cloudwriter.CloudWriterFactory
	cloudBucketName    string
}

// NewParquetOutput writes parquet files locally, or uploads them when a
// cloud factory is given.
func NewParquetOutput(basePath, folder string, factory cloudwriter.CloudWriterFactory, bucket string) *ParquetOutput {
	p := &ParquetOutput{
		basePath:           basePath,
		folder:             folder,
		writers:            make(map[string]*writer.ParquetWriter),
		files:              make(map[string]source.ParquetFile),
		cloudWriterFactory: factory,
		cloudBucketName:    bucket,
	}
	if factory == nil {
		p.cleanup()
	}
	return p
}

func (p *ParquetOutput) WriteMessage(topic string, msg []byte) error {
	event, partitionPath, err := partition(msg)
	if err != nil {
		return err
	}

	writerKey := topic + "_" + partitionPath
	p.mu.Lock()
	defer p.mu.Unlock()
	pw, ok := p.writers[writerKey]
	if !ok {
		pw, err = p.createNewWriter(writerKey, topic, partitionPath)
		if err != nil {
			return fmt.Errorf("failed to create new writer: %w", err)
		}
	}
	if err := pw.Write(event); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	return nil
}

func (p *ParquetOutput) createNewWriter(writerKey, topic, partitionPath string) (*writer.ParquetWriter, error) {
	var fw source.ParquetFile
	if p.cloudWriterFactory != nil {
		objectPath := filepath.ToSlash(filepath.Join(p.folder, topic, partitionPath, "data.parquet"))
		cloudWriter, err := p.cloudWriterFactory.NewWriter(p.cloudBucketName, objectPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create cloud file writer: %w", err)
		}
		fw = NewCloudParquetFile(cloudWriter)
	} else {
		fullPath := filepath.Join(p.basePath, p.folder, topic, partitionPath)
		if err := os.MkdirAll(fullPath, os.ModePerm); err != nil {
			return nil, err
		}
		var err error
		fw, err = local.NewLocalFileWriter(filepath.Join(fullPath, "data.parquet"))
		if err != nil {
			return nil, fmt.Errorf("failed to create local file writer: %w", err)
		}
	}

	obj, err := parquetSchema(topic)
	if err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	pw, err := writer.NewParquetWriter(fw, obj, 4)
	if err != nil {
		return nil, fmt.Errorf("failed to create ParquetWriter: %w", err)
	}

	p.writers[writerKey] = pw
	p.files[writerKey] = fw
	return pw, nil
}

func (p *ParquetOutput) cleanup() {
	fullPath := filepath.Join(p.basePath, p.folder)
	if _, err := os.Stat(fullPath); os.IsNotExist(err) {
		return
	}
	err := filepath.Walk(fullPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".parquet" {
			return os.Remove(path)
		}
		return nil
	})
	if err != nil {
		log.Printf("Error cleaning up Parquet files: %v", err)
	}
}

func (p *ParquetOutput) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var lastErr error
	for key, pw := range p.writers {
		if err := pw.WriteStop(); err != nil {
			lastErr = err
			log.Printf("Error closing writer for key %s: %v", key, err)
		}
		if err := p.files[key].Close(); err != nil {
			lastErr = err
			log.Printf("Error closing file for key %s: %v", key, err)
		}
	}
	return lastErr
}

// KafkaOutput keys every message by tracking number.
type KafkaOutput struct {
	producer *producers.SaramaProducer
}

func NewKafkaOutput(producer *producers.SaramaProducer) *KafkaOutput {
	return &KafkaOutput{producer: producer}
}

func (k *KafkaOutput) WriteMessage(topic string, msg []byte) error {
	var event ResultEvent
	if err := json.Unmarshal(msg, &event); err != nil {
		return err
	}
	return k.producer.WriteKeyedMessage(topic, event.TrackingNo, msg)
}

func (k *KafkaOutput) Close() error { return k.producer.Close() }

// RepositoryOutput buffers results and bulk inserts them on Close.
type RepositoryOutput struct {
	repo    repositories.ResultRepository
	pending []*models.SimulationResult
	batch   int
}

func NewRepositoryOutput(repo repositories.ResultRepository, batch int) *RepositoryOutput {
	if batch <= 0 {
		batch = 500
	}
	return &RepositoryOutput{repo: repo, batch: batch}
}

func (r *RepositoryOutput) WriteMessage(_ string, msg []byte) error {
	var event ResultEvent
	if err := json.Unmarshal(msg, &event); err != nil {
		return err
	}
	r.pending = append(r.pending, &models.SimulationResult{
		ID:         event.ResultID,
		TrackingNo: event.TrackingNo,
		CostFactor: event.CostFactor,
		Conditions: event.Conditions,
		Path:       event.Path,
		TotalCost:  event.TotalCost,
		Status:     event.Status,
		PlannedAt:  time.Unix(event.Timestamp, 0).UTC(),
	})
	if len(r.pending) >= r.batch {
		return r.flush()
	}
	return nil
}

func (r *RepositoryOutput) flush() error {
	if len(r.pending) == 0 {
		return nil
	}
	if err := r.repo.BulkCreate(context.Background(), r.pending); err != nil {
		return fmt.Errorf("store %d results: %w", len(r.pending), err)
	}
	r.pending = r.pending[:0]
	return nil
}

func (r *RepositoryOutput) Close() error { return r.flush() }

// DetermineOutputDestination builds the sink selected by output_format.
// Postgres results need a repository, passed in by the caller.
func DetermineOutputDestination(config *models.Config, repo repositories.ResultRepository) (OutputDestination, error) {
	switch config.OutputFormat {
	case "", "console":
		return NewConsoleOutput(os.Stdout), nil
	case "json":
		return NewJSONOutput(config.OutputPath, config.OutputFolder), nil
	case "csv":
		return NewCSVOutput(config.OutputPath, config.OutputFolder), nil
	case "parquet":
		var factory cloudwriter.CloudWriterFactory
		switch config.CloudStorage.Provider {
		case "", "local":
		case "s3":
			f, err := cloudwriter.NewS3WriterFactory(config.CloudStorage.Region)
			if err != nil {
				return nil, fmt.Errorf("failed to create cloud writer factory: %w", err)
			}
			factory = f
		default:
			return nil, fmt.Errorf("unsupported cloud storage provider: %s", config.CloudStorage.Provider)
		}
		return NewParquetOutput(config.OutputPath, config.OutputFolder, factory, config.CloudStorage.BucketName), nil
	case "kafka":
		producer, err := producers.NewSaramaProducer(config.KafkaBrokerList, config.KafkaTopic)
		if err != nil {
			return nil, err
		}
		return NewKafkaOutput(producer), nil
	case "postgres":
		if repo == nil {
			return nil, fmt.Errorf("postgres output requires a database connection")
		}
		return NewRepositoryOutput(repo, 0), nil
	}
	return nil, fmt.Errorf("unsupported output format: %s", config.OutputFormat)
}
