package main

import (
	"bufio"
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"

	"github.com/xenking/merch-store/internal/domain/order"
	"github.com/xenking/merch-store/internal/storage/postgres"
)

const defaultBatchSize = 500

func main() {
	var (
		databaseURL string
		status      string
		outPath     string
		batchSize   int
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&status, "status", string(order.StatusPending), "order status to export")
	flag.StringVar(&outPath, "out", "orders.jsonl.gz", "output file, \"-\" for stdout")
	flag.IntVar(&batchSize, "batch-size", defaultBatchSize, "orders fetched per query")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if batchSize < 1 {
		slog.Error("batch size must be positive")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, order.Status(status), outPath, batchSize); err != nil {
		slog.Error("export failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, databaseURL string, status order.Status, outPath string, batchSize int) error {
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	var out io.WriteCloser = nopCloser{Writer: os.Stdout}
	if outPath != "-" {
		f, err := os.Create(outPath)
		if err != nil {
			return errors.Wrap(err, "create output file")
		}
		out = f
	}

	start := time.Now()
	n, err := exportTo(ctx, postgres.NewOrderRepository(pool), status, out, batchSize)
	if err != nil {
		return err
	}

	slog.Info("export completed",
		slog.String("status", string(status)),
		slog.Int("orders", n),
		slog.String("out", outPath),
		slog.Duration("elapsed", time.Since(start)),
	)
	return nil
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// exportTo runs export and closes out. A failed close fails the export.
func exportTo(ctx context.Context, orders order.Reader, status order.Status, out io.WriteCloser, batchSize int) (n int, err error) {
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "close output")
		}
	}()
	return export(ctx, orders, status, out, batchSize)
}

// export streams orders with the given status to w as gzip-compressed JSON
// lines, paging by order id.
func export(ctx context.Context, orders order.Reader, status order.Status, w io.Writer, batchSize int) (int, error) {
	bw := bufio.NewWriter(w)
	zw := pgzip.NewWriter(bw)

	var (
		total   int
		afterID int64
		e       jx.Encoder
	)
	for {
		batch, err := orders.ListByStatus(ctx, status, afterID, batchSize)
		if err != nil {
			return total, errors.Wrapf(err, "list orders after %d", afterID)
		}
		for _, o := range batch {
			e.Reset()
			writeOrder(&e, o)
			if _, err := zw.Write(append(e.Bytes(), '\n')); err != nil {
				return total, errors.Wrap(err, "write order")
			}
			afterID = o.ID
			total++
		}
		if len(batch) < batchSize {
			break
		}
		slog.Info("exported batch", slog.Int("total", total), slog.Int64("last_id", afterID))
	}

	if err := zw.Close(); err != nil {
		return total, errors.Wrap(err, "close gzip stream")
	}
	if err := bw.Flush(); err != nil {
		return total, errors.Wrap(err, "flush output")
	}
	return total, nil
}

func writeOrder(e *jx.Encoder, o order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(o.ID)
	e.FieldStart("order_number")
	e.Str(o.Number)
	e.FieldStart("status")
	e.Str(string(o.Status))
	e.FieldStart("customer_name")
	e.Str(o.CustomerName)
	e.FieldStart("customer_email")
	e.Str(o.CustomerEmail)
	e.FieldStart("customer_phone")
	e.Str(o.CustomerPhone)
	e.FieldStart("total_amount")
	e.Str(o.Total.StringFixed(2))
	e.FieldStart("created_at")
	e.Str(o.CreatedAt.UTC().Format(time.RFC3339))
	e.FieldStart("items")
	e.ArrStart()
	for _, it := range o.Items {
		e.ObjStart()
		e.FieldStart("product_id")
		e.Int64(it.ProductID)
		e.FieldStart("product_name")
		e.Str(it.ProductName)
		e.FieldStart("price")
		e.Str(it.Price.StringFixed(2))
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
}
