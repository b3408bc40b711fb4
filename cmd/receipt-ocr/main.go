package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/receipt-ocr/internal/receipt"
	"github.com/zombor/receipt-ocr/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

// config holds every flag
type config struct {
	port        *int
	storeType   *string
	dbPath      *string
	databaseURL *string
	storagePath *string
	profilePath *string
	debug       *bool

	recognizer    *string
	ocrCommand    *string
	geminiKey     *string
	geminiModel   *string
	ollamaURL     *string
	ollamaModel   *string
	docaiProject  *string
	docaiLocation *string
	docaiProc     *string
	docaiCreds    *string
	tessLangs     *string

	authUser *string
	authPass *string

	scanPath   *string
	resultPath *string
	hocrPath   *string
	dumpPath   *string
}

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	// A missing .env is fine
	_ = godotenv.Load()

	fs := ff.NewFlagSet("receipt-ocr")
	cfg := config{
		port:        fs.IntLong("port", 8080, "HTTP server port"),
		storeType:   fs.StringLong("store", "bolt", "Purchase store: 'bolt' or 'postgres'"),
		dbPath:      fs.StringLong("db", "receipt-ocr.db", "BoltDB file path"),
		databaseURL: fs.StringLong("database-url", "", "PostgreSQL connection URL (or set DATABASE_URL env var)"),
		storagePath: fs.StringLong("storage", "./photos", "Photo storage directory path"),
		profilePath: fs.StringLong("profile", "", "YAML pipeline profile (optional)"),
		debug:       fs.BoolLong("debug", "Enable debug logging"),

		recognizer:    fs.StringLong("recognizer", "gemini", "OCR backend: 'command', 'gemini', 'ollama', 'documentai' or 'tesseract'"),
		ocrCommand:    fs.StringLong("ocr-command", "", "External OCR program for the 'command' backend"),
		geminiKey:     fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)"),
		geminiModel:   fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name"),
		ollamaURL:     fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL"),
		ollamaModel:   fs.StringLong("ollama-model", "qwen2.5vl", "Ollama vision model name"),
		docaiProject:  fs.StringLong("docai-project", "", "Document AI project ID"),
		docaiLocation: fs.StringLong("docai-location", "us", "Document AI location"),
		docaiProc:     fs.StringLong("docai-processor", "", "Document AI OCR processor ID"),
		docaiCreds:    fs.StringLong("docai-credentials", "", "Service account file (or set GOOGLE_APPLICATION_CREDENTIALS)"),
		tessLangs:     fs.StringLong("tesseract-langs", "jpn", "Comma separated Tesseract languages"),

		authUser: fs.StringLong("auth-user", "", "Basic auth username (optional)"),
		authPass: fs.StringLong("auth-pass", "", "Basic auth password (optional)"),

		scanPath:   fs.StringLong("scan", "", "Read one photo, print the receipts as JSON and exit"),
		resultPath: fs.StringLong("result", "", "Read words from a saved OCR result instead of running OCR"),
		hocrPath:   fs.StringLong("hocr", "", "Read words from an hOCR file instead of running OCR"),
		dumpPath:   fs.StringLong("dump", "", "With --scan, also save the OCR words as a result file"),
	}
	showVersion := fs.BoolLong("version", "Show version information")

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("RECEIPT_OCR"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if *cfg.debug {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	profile := receipt.DefaultProfile()
	if *cfg.profilePath != "" {
		var err error
		profile, err = receipt.LoadProfile(*cfg.profilePath)
		if err != nil {
			slog.Error("Failed to load profile", "error", err)
			os.Exit(1)
		}
	}
	analyzer := receipt.NewAnalyzer(profile)
	p := analyzer.Profile()
	slog.Debug("Pipeline profile",
		"pad_x", p.PadX,
		"pad_y", p.PadY,
		"normalize_width", p.NormalizeWidth,
		"right_column_ratio", p.Classifier.RightColumnRatio,
		"ignore_keywords", p.Classifier.IgnoreKeywords,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// One-shot modes
	if *cfg.resultPath != "" || *cfg.hocrPath != "" {
		if err := runOffline(cfg, analyzer); err != nil {
			slog.Error("Failed to read receipts", "error", err)
			os.Exit(1)
		}
		return
	}
	if *cfg.scanPath != "" {
		recognizer, err := newRecognizer(ctx, cfg)
		if err != nil {
			slog.Error("Failed to initialize recognizer", "error", err)
			os.Exit(1)
		}
		defer recognizer.Close()
		if err := runScan(ctx, cfg, recognizer, analyzer); err != nil {
			slog.Error("Failed to scan photo", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := serve(ctx, cfg, analyzer); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}
}

// serve runs the HTTP server until interrupted
func serve(ctx context.Context, cfg config, analyzer *receipt.Analyzer) error {
	slog.Info("Initializing store...", "type", *cfg.storeType)
	store, err := newStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing store: %w", err)
	}
	defer store.Close()

	recognizer, err := newRecognizer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing recognizer: %w", err)
	}
	defer recognizer.Close()

	slog.Info("Initializing storage...")
	storage, err := receipt.NewLocalStorage(*cfg.storagePath)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}

	service := receipt.NewService(store, recognizer, storage, analyzer)
	server := receipt.NewServer(service, receipt.BasicAuth{
		Username: *cfg.authUser,
		Password: *cfg.authPass,
	})

	addr := fmt.Sprintf(":%d", *cfg.port)
	errc := make(chan error, 1)
	go func() {
		errc <- server.Start(addr)
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "version", version)
	if *cfg.authUser != "" || *cfg.authPass != "" {
		slog.Info("Basic auth enabled", "user", *cfg.authUser)
	}

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		slog.Info("Shutting down...")
		return nil
	}
}

// newStore opens the configured purchase store
func newStore(ctx context.Context, cfg config) (receipt.Store, error) {
	switch *cfg.storeType {
	case "bolt":
		return receipt.NewBoltStore(*cfg.dbPath)
	case "postgres":
		url := *cfg.databaseURL
		if url == "" {
			url = os.Getenv("DATABASE_URL")
		}
		if url == "" {
			return nil, fmt.Errorf("postgres store needs --database-url or DATABASE_URL")
		}
		return receipt.NewPostgresStore(ctx, url)
	default:
		return nil, fmt.Errorf("invalid store type %q: want bolt or postgres", *cfg.storeType)
	}
}

// newRecognizer builds the configured OCR backend
func newRecognizer(ctx context.Context, cfg config) (scanning.Recognizer, error) {
	switch *cfg.recognizer {
	case "command":
		slog.Info("Initializing OCR command...", "command", *cfg.ocrCommand)
		fields := strings.Fields(*cfg.ocrCommand)
		if len(fields) == 0 {
			return nil, fmt.Errorf("the command recognizer needs --ocr-command")
		}
		return scanning.NewCommand(fields[0], fields[1:]...)
	case "gemini":
		apiKey := *cfg.geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
		}
		slog.Info("Initializing Gemini recognizer...", "model", *cfg.geminiModel)
		return scanning.NewGemini(apiKey, *cfg.geminiModel)
	case "ollama":
		slog.Info("Initializing Ollama recognizer...", "url", *cfg.ollamaURL, "model", *cfg.ollamaModel)
		return scanning.NewOllama(*cfg.ollamaURL, *cfg.ollamaModel)
	case "documentai":
		creds := *cfg.docaiCreds
		if creds == "" {
			creds = os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
		}
		slog.Info("Initializing Document AI recognizer...", "project", *cfg.docaiProject, "location", *cfg.docaiLocation)
		return scanning.NewDocumentAI(ctx, scanning.DocumentAIConfig{
			ProjectID:       *cfg.docaiProject,
			Location:        *cfg.docaiLocation,
			ProcessorID:     *cfg.docaiProc,
			CredentialsFile: creds,
		})
	case "tesseract":
		slog.Info("Initializing Tesseract recognizer...", "languages", *cfg.tessLangs)
		return scanning.NewTesseract(strings.Split(*cfg.tessLangs, ",")...), nil
	default:
		return nil, fmt.Errorf("invalid recognizer %q: want command, gemini, ollama, documentai or tesseract", *cfg.recognizer)
	}
}
