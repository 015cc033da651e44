package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/defistate/stellar-pool-client-go/cmd/client/config"
	"github.com/defistate/stellar-pool-client-go/pkg/amount"
	"github.com/defistate/stellar-pool-client-go/pkg/deposit"
	"github.com/defistate/stellar-pool-client-go/pkg/ledger"
	"github.com/defistate/stellar-pool-client-go/pkg/ledger/mock"
	"github.com/defistate/stellar-pool-client-go/pkg/ledger/sorobanrpc"
	"github.com/defistate/stellar-pool-client-go/pkg/poolcache"
	"github.com/defistate/stellar-pool-client-go/protocols/asset"
	"github.com/defistate/stellar-pool-client-go/protocols/liquiditypool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stellar/go/keypair"
)

// --- VISUAL CONSTANTS ---
const (
	Reset  = "\033[0m"
	Bold   = "\033[1m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Blue   = "\033[34m"
	Cyan   = "\033[36m"
	Gray   = "\033[37m"

	// Credentials are read from the environment once and passed explicitly.
	EnvSecret  = "STELLAR_SECRET"
	EnvAccount = "STELLAR_ACCOUNT"

	simulatedBalance = 10_000 * 10_000_000
	simulatedSeq     = 1 << 32
)

// header prints a styled section header
func header(title string) {
	fmt.Println("\n" + Bold + Cyan + ":: " + title + " ::" + Reset)
}

// App holds everything a console command needs.
type App struct {
	cfg    *config.ClientConfig
	ledger ledger.Ledger
	orch   *deposit.Orchestrator
	cache  *poolcache.Cache
	creds  deposit.Credentials
	logger *slog.Logger
	reader *bufio.Reader
}

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the configuration file.")
	simulate := flag.Bool("simulate", false, "Run against an in-memory ledger instead of the network.")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// --- 1. SETUP LOGGING (To File) ---
	logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		panic(fmt.Sprintf("Failed to open log file: %v", err))
	}
	defer logFile.Close()

	rootLogger := slog.New(slog.NewJSONHandler(logFile, nil))

	closeApp := func() {
		fmt.Println("\n" + Red + "Fatal error occurred. Check " + cfg.LogFile + " for details." + Reset)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- 2. CREDENTIALS ---
	creds, err := loadCredentials(*simulate)
	if err != nil {
		rootLogger.Error("Failed to load credentials", "error", err)
		fmt.Println(Red + err.Error() + Reset)
		closeApp()
	}

	// --- 3. LEDGER ---
	network := cfg.ChainNetwork()
	var l ledger.Ledger
	if *simulate {
		m := mock.NewLedger(network.Passphrase)
		m.FundAccount(creds.Account, simulatedBalance, simulatedSeq)
		l = m
		rootLogger.Info("Using simulated ledger", "account", creds.Account)
	} else {
		client, err := sorobanrpc.NewClient(ctx, sorobanrpc.Config{
			URL:    network.RPCURL,
			Logger: rootLogger.With("component", "soroban-rpc"),
		})
		if err != nil {
			rootLogger.Error("Failed to initialize RPC client", "url", network.RPCURL, "error", err)
			closeApp()
		}
		defer client.Close()
		if err := client.VerifyNetwork(ctx, network.Passphrase); err != nil {
			rootLogger.Error("Network check failed", "url", network.RPCURL, "error", err)
			closeApp()
		}
		l = client
	}

	// --- 4. ORCHESTRATOR & CACHE ---
	orch, err := deposit.NewOrchestrator(deposit.Config{
		Ledger:       l,
		Network:      network,
		Logger:       rootLogger.With("component", "deposit"),
		Metrics:      deposit.NewMetrics(prometheus.DefaultRegisterer),
		BaseFee:      cfg.BaseFee,
		TxTimeout:    cfg.TxTimeout,
		PollInterval: cfg.PollInterval,
		ConfirmGrace: cfg.ConfirmGrace,
	})
	if err != nil {
		rootLogger.Error("Failed to initialize orchestrator", "error", err)
		closeApp()
	}

	cache, err := poolcache.Open(cfg.CachePath)
	if err != nil {
		rootLogger.Error("Failed to open pool cache", "path", cfg.CachePath, "error", err)
		closeApp()
	}

	app := &App{
		cfg:    cfg,
		ledger: l,
		orch:   orch,
		cache:  cache,
		creds:  creds,
		logger: rootLogger,
		reader: bufio.NewReader(os.Stdin),
	}

	// --- 5. START CONSOLE ---
	fmt.Println(Green + "Starting Stellar Pool Client..." + Reset)
	fmt.Printf("Logs are being written to '%s'\n", cfg.LogFile)

	done := make(chan struct{})
	go func() {
		defer close(done)
		app.runConsole(ctx)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		fmt.Println("\n" + Yellow + "Shutting down..." + Reset)
	}
}

// runConsole handles user input and display.
func (a *App) runConsole(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		a.printMenu()

		fmt.Print(Bold + "Enter selection: " + Reset)
		input, err := a.reader.ReadString('\n')
		if err != nil {
			return
		}
		input = strings.TrimSpace(input)
		if input == "q" {
			fmt.Println(Yellow + "Exiting..." + Reset)
			return
		}

		a.handleCommand(ctx, input)

		fmt.Println("\n" + Gray + "[Press Enter to continue]" + Reset)
		a.reader.ReadString('\n')
	}
}

func (a *App) printMenu() {
	fmt.Print("\033[H\033[2J") // Clear screen
	fmt.Println(Bold + "STELLAR POOL CLIENT" + Reset + Gray + " | " + a.cfg.NetworkPassphrase + Reset)
	fmt.Println(Gray + "Account: " + a.creds.Account + Reset)
	fmt.Println(Gray + "-----------------------------------" + Reset)
	fmt.Printf(" %s1.%s Create Pool & Deposit %s(own asset vs XLM)%s\n", Cyan, Reset, Gray, Reset)
	fmt.Printf(" %s2.%s Deposit %s(any asset pair)%s\n", Cyan, Reset, Gray, Reset)
	fmt.Printf(" %s3.%s Resolve Pool ID\n", Cyan, Reset)
	fmt.Printf(" %s4.%s Cached Pools\n", Cyan, Reset)
	fmt.Printf(" %s5.%s Find Pools %s(by Asset)%s\n", Cyan, Reset, Gray, Reset)
	fmt.Printf(" %s6.%s Account Info\n", Cyan, Reset)
	fmt.Println(Gray + "-----------------------------------" + Reset)
	fmt.Printf(" %sh.%s Help\n", Yellow, Reset)
	fmt.Printf(" %sq.%s Quit\n", Red, Reset)
	fmt.Println("")
}

func (a *App) handleCommand(ctx context.Context, input string) {
	switch input {
	case "1":
		a.createOwnAssetPool(ctx)
	case "2":
		a.depositPair(ctx)
	case "3":
		a.resolvePool()
	case "4":
		a.listCachedPools()
	case "5":
		a.findPoolsByAsset()
	case "6":
		a.printAccount(ctx)
	case "h":
		printHelp()
	default:
		fmt.Println(Red + "Unknown command." + Reset)
	}
}

// --- COMMAND HANDLERS ---

func printHelp() {
	fmt.Print("\033[H\033[2J")

	header("LIQUIDITY POOL DEPOSITS")
	fmt.Println(Bold + "1. POOL IDENTITY" + Reset)
	fmt.Println("   A pool is addressed by the SHA-256 of its parameters: the asset pair in")
	fmt.Println("   canonical order (native first, then by code, then by issuer) and the fee.")
	fmt.Println("   The order you type the assets in does not matter; the ID is the same.")
	fmt.Println("")
	fmt.Println(Bold + "2. THE DEPOSIT TRANSACTION" + Reset)
	fmt.Println("   One transaction, two operations, applied atomically:")
	fmt.Println("   - " + Yellow + "change_trust" + Reset + ":           trust the pool's share asset.")
	fmt.Println("   - " + Yellow + "liquidity_pool_deposit" + Reset + ": deposit up to the max amounts.")
	fmt.Println("")
	fmt.Println(Bold + "3. THE PRICE BAND" + Reset)
	fmt.Println("   The deposit only applies if the pool price (A per B) is inside [min, max].")
	fmt.Println("   A " + Cyan + "1/1" + Reset + " to " + Cyan + "1/1" + Reset + " band only succeeds when the pool is exactly at parity.")
	fmt.Println("")
	fmt.Println(Bold + "4. OUTCOMES" + Reset)
	fmt.Println("   " + Green + "Confirmed" + Reset + "  the transaction is in a ledger; follow the explorer link.")
	fmt.Println("   " + Red + "Rejected" + Reset + "   the network refused it; the failing operation is shown.")
	fmt.Println("   " + Yellow + "Timed out" + Reset + "  outcome unknown; look the hash up before resubmitting.")
}

// createOwnAssetPool pairs an asset code issued by the
// configured account with the native asset.
func (a *App) createOwnAssetPool(ctx context.Context) {
	header("CREATE POOL & DEPOSIT")
	code := a.prompt("Asset code (issued by your account): ")
	if code == "" {
		return
	}
	issued, err := asset.NewIssued(code, a.creds.Account)
	if err != nil {
		fmt.Printf(Red+"[ERROR] %v%s\n", err, Reset)
		return
	}
	a.runDeposit(ctx, asset.Native(), issued, code)
}

func (a *App) depositPair(ctx context.Context) {
	header("DEPOSIT")
	assetA, ok := a.promptAsset("Asset A (native or CODE:ISSUER): ")
	if !ok {
		return
	}
	assetB, ok := a.promptAsset("Asset B (native or CODE:ISSUER): ")
	if !ok {
		return
	}
	label := a.prompt("Label for the cache (optional): ")
	a.runDeposit(ctx, assetA, assetB, label)
}

func (a *App) runDeposit(ctx context.Context, assetA, assetB asset.Asset, label string) {
	poolType, fee, err := a.cfg.Pool()
	if err != nil {
		fmt.Printf(Red+"[ERROR] %v%s\n", err, Reset)
		return
	}
	pool, err := liquiditypool.NewPool(assetA, assetB, poolType, fee)
	if err != nil {
		fmt.Printf(Red+"[ERROR] %v%s\n", err, Reset)
		return
	}
	fmt.Printf("Pool ID: %s%s%s\n", Cyan, pool.ID, Reset)
	if label != "" {
		a.savePool(pool, label)
	}

	maxA := a.prompt(fmt.Sprintf("Max amount of %s: ", assetA.Code()))
	maxB := a.prompt(fmt.Sprintf("Max amount of %s: ", assetB.Code()))
	minPrice, maxPrice, ok := a.promptBand()
	if !ok {
		return
	}

	intent, err := deposit.NewDepositIntent(pool, maxA, maxB, minPrice, maxPrice)
	if err != nil {
		printFailure(err)
		return
	}

	fmt.Println(Gray + "Submitting... waiting for the transaction to confirm." + Reset)
	conf, err := a.orch.Execute(ctx, a.creds, intent)
	if err != nil {
		printFailure(err)
		return
	}

	header("CONFIRMED")
	printField("Transaction", conf.TxHash)
	printField("Ledger", conf.Ledger)
	printField("Pool ID", conf.PoolID)
	printField("Fee charged", amount.FormatStroops(conf.FeeCharged)+" XLM")
	if conf.ExplorerURL != "" {
		printField("Explorer", Blue+conf.ExplorerURL+Reset)
	}
}

func (a *App) resolvePool() {
	header("RESOLVE POOL ID")
	assetA, ok := a.promptAsset("Asset A (native or CODE:ISSUER): ")
	if !ok {
		return
	}
	assetB, ok := a.promptAsset("Asset B (native or CODE:ISSUER): ")
	if !ok {
		return
	}
	poolType, fee, err := a.cfg.Pool()
	if err != nil {
		fmt.Printf(Red+"[ERROR] %v%s\n", err, Reset)
		return
	}
	pool, err := liquiditypool.NewPool(assetA, assetB, poolType, fee)
	if err != nil {
		fmt.Printf(Red+"[ERROR] %v%s\n", err, Reset)
		return
	}

	printField("Pool ID", Cyan+pool.ID.String()+Reset)
	printField("Asset A", pool.Params.AssetA)
	printField("Asset B", pool.Params.AssetB)
	printField("Fee (bps)", pool.Params.Fee)
	if pool.Reordered {
		fmt.Println(Gray + "Assets were swapped into canonical order." + Reset)
	}

	if label := a.prompt("Save under label (optional): "); label != "" {
		a.savePool(pool, label)
	}
}

func (a *App) savePool(pool liquiditypool.Pool, label string) {
	if err := a.cache.Put(pool.View(label)); err != nil {
		a.logger.Warn("Failed to cache pool", "label", label, "pool_id", pool.ID, "error", err)
		fmt.Printf(Yellow+"[WARN] Could not cache pool: %v%s\n", err, Reset)
		return
	}
	fmt.Printf(Gray+"Cached as '%s' in %s%s\n", label, a.cfg.CachePath, Reset)
}

func (a *App) listCachedPools() {
	header("CACHED POOLS")
	pools := a.cache.List()
	if len(pools) == 0 {
		fmt.Println(Yellow + "[INFO] No pools cached yet." + Reset)
		return
	}
	printPools(pools)
}

func (a *App) findPoolsByAsset() {
	header("FIND POOLS")
	reg := a.cache.Registry()
	if known := reg.Assets(); len(known) > 0 {
		names := make([]string, len(known))
		for i, x := range known {
			names[i] = shortAsset(x)
		}
		fmt.Println(Gray + "Known assets: " + strings.Join(names, ", ") + Reset)
	}

	input := a.prompt("Asset (CODE, CODE:ISSUER or native): ")
	if input == "" {
		return
	}

	var pools []liquiditypool.PoolView
	if strings.Contains(input, ":") || strings.EqualFold(input, "native") {
		x, err := asset.Parse(input)
		if err != nil {
			fmt.Printf(Red+"[ERROR] %v%s\n", err, Reset)
			return
		}
		pools = reg.GetByAsset(x)
	} else {
		pools = reg.GetByAssetCode(input)
	}

	if len(pools) == 0 {
		fmt.Println(Yellow + "[NOT FOUND] No cached pools hold this asset." + Reset)
		return
	}
	printPools(pools)
}

func (a *App) printAccount(ctx context.Context) {
	header("ACCOUNT")
	acct, err := a.ledger.Account(ctx, a.creds.Account)
	if err != nil {
		fmt.Printf(Red+"[ERROR] %v%s\n", err, Reset)
		return
	}
	printField("Account", acct.ID)
	printField("Sequence", acct.Sequence)
	printField("Balance", amount.FormatStroops(acct.Balance)+" XLM")
}

// --- HELPERS ---

func printField(key string, value any) {
	fmt.Printf("  %s%-15s%s %v\n", Gray, key+":", Reset, value)
}

func printPools(pools []liquiditypool.PoolView) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 4, ' ', 0)
	fmt.Fprintln(w, "LABEL\tASSET A\tASSET B\tFEE\tPOOL ID\t")
	fmt.Fprintln(w, "-----\t-------\t-------\t---\t-------\t")
	for _, p := range pools {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t\n", p.Label, shortAsset(p.AssetA), shortAsset(p.AssetB), p.Fee, p.ID)
	}
	w.Flush()
}

// shortAsset truncates the issuer for table display.
func shortAsset(x asset.Asset) string {
	if x.IsNative() {
		return "XLM"
	}
	iss := x.Issuer()
	return x.Code() + ":" + iss[:4] + "..." + iss[len(iss)-4:]
}

func printFailure(err error) {
	var e *deposit.Error
	if !errors.As(err, &e) {
		fmt.Printf(Red+"[ERROR] %v%s\n", err, Reset)
		return
	}

	header("FAILED")
	printField("Kind", Red+e.Kind.String()+Reset)
	if e.Kind == deposit.KindOperationRejected {
		if e.OperationIndex == deposit.TxLevel {
			printField("Operation", "transaction")
		} else {
			printField("Operation", e.OperationIndex)
		}
		printField("Reason", Yellow+e.ReasonCode+Reset)
	}
	if e.TxHash != "" {
		printField("Transaction", e.TxHash)
	}
	if e.Err != nil {
		printField("Detail", e.Err)
	}
	printField("Next step", Bold+e.Advice().String()+Reset)
}

func (a *App) prompt(label string) string {
	fmt.Print(Bold + label + Reset)
	input, _ := a.reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func (a *App) promptAsset(label string) (asset.Asset, bool) {
	input := a.prompt(label)
	if input == "" {
		return asset.Asset{}, false
	}
	x, err := asset.Parse(input)
	if err != nil {
		fmt.Printf(Red+"[ERROR] %v%s\n", err, Reset)
		return asset.Asset{}, false
	}
	return x, true
}

// promptBand asks for the price band, defaulting to the configured one.
func (a *App) promptBand() (minPrice, maxPrice amount.Price, ok bool) {
	defMin, defMax, _ := a.cfg.PriceBand()
	minPrice, maxPrice = defMin, defMax

	if s := a.prompt(fmt.Sprintf("Min price A/B [%s]: ", defMin)); s != "" {
		p, err := amount.ParsePrice(s)
		if err != nil {
			fmt.Printf(Red+"[ERROR] %v%s\n", err, Reset)
			return amount.Price{}, amount.Price{}, false
		}
		minPrice = p
	}
	if s := a.prompt(fmt.Sprintf("Max price A/B [%s]: ", defMax)); s != "" {
		p, err := amount.ParsePrice(s)
		if err != nil {
			fmt.Printf(Red+"[ERROR] %v%s\n", err, Reset)
			return amount.Price{}, amount.Price{}, false
		}
		maxPrice = p
	}
	return minPrice, maxPrice, true
}

func loadConfig(path string) (*config.ClientConfig, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		log.Printf("No configuration at %s, using testnet defaults", path)
		return config.Default(), nil
	}
	log.Printf("Loading configuration from: %s", path)
	return config.LoadConfig(path)
}

// loadCredentials reads the signing key from the environment. In simulation
// a throwaway key is generated when none is set.
func loadCredentials(simulate bool) (deposit.Credentials, error) {
	secret := os.Getenv(EnvSecret)
	if secret == "" {
		if !simulate {
			return deposit.Credentials{}, fmt.Errorf("%s is not set", EnvSecret)
		}
		kp, err := keypair.Random()
		if err != nil {
			return deposit.Credentials{}, err
		}
		return deposit.Credentials{Secret: kp.Seed(), Account: kp.Address()}, nil
	}

	account := os.Getenv(EnvAccount)
	if account == "" {
		kp, err := keypair.ParseFull(secret)
		if err != nil {
			return deposit.Credentials{}, fmt.Errorf("%s: %w", EnvSecret, err)
		}
		account = kp.Address()
	}
	return deposit.Credentials{Secret: secret, Account: account}, nil
}
