// The seed binary provisions a development world: demo assets, system
// wallets, a demo user and initial treasury funding. Every step is
// idempotent, so re-running is safe.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/coinvault/coinvault/internal/application/fingerprint"
	"github.com/coinvault/coinvault/internal/application/ports"
	"github.com/coinvault/coinvault/internal/config"
	"github.com/coinvault/coinvault/internal/domain/entities"
	"github.com/coinvault/coinvault/internal/domain/valueobjects"
	"github.com/coinvault/coinvault/internal/infrastructure/persistence/postgres"
	"github.com/coinvault/coinvault/internal/pkg/logger"
)

type seedAsset struct {
	code string
	name string
	// welcomeGrant is credited to the demo user from the treasury. Zero
	// means no grant.
	welcomeGrant int64
}

var demoAssets = []seedAsset{
	{code: "GOLD_COINS", name: "Gold Coins", welcomeGrant: 1000},
	{code: "DIAMONDS", name: "Diamonds"},
}

func main() {
	var (
		email          string
		treasuryAmount int64
	)
	flag.StringVar(&email, "email", "alice@example.com", "Demo user email")
	flag.Int64Var(&treasuryAmount, "treasury-amount", 1_000_000, "Initial treasury funding per asset")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load configuration:", err)
		os.Exit(1)
	}

	log := logger.New(&logger.Config{Level: cfg.Log.Level, Format: "text", Output: os.Stdout})

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := postgres.NewConnectionPool(ctx, postgres.DefaultPoolConfig(cfg.Database.URL))
	if err != nil {
		log.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	s := &seeder{
		users:   postgres.NewUserRepository(pool),
		assets:  postgres.NewAssetTypeRepository(pool),
		wallets: postgres.NewWalletRepository(pool),
		txs:     postgres.NewTransactionRepository(pool),
		ledger:  postgres.NewLedgerRepository(pool),
		uow:     postgres.NewUnitOfWork(pool),
		log:     log,
	}

	if err := s.run(ctx, email, treasuryAmount); err != nil {
		log.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log.Info("seed complete")
}

type seeder struct {
	users   ports.UserRepository
	assets  ports.AssetTypeRepository
	wallets ports.WalletRepository
	txs     ports.TransactionRepository
	ledger  ports.LedgerRepository
	uow     ports.UnitOfWork
	log     *slog.Logger
}

func (s *seeder) run(ctx context.Context, email string, treasuryAmount int64) error {
	user, err := s.ensureUser(ctx, email)
	if err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}

	for _, def := range demoAssets {
		asset, err := s.ensureAsset(ctx, def)
		if err != nil {
			return fmt.Errorf("ensure asset %s: %w", def.code, err)
		}

		treasury, err := s.ensureSystemWallet(ctx, entities.SystemCodeTreasury, asset.ID())
		if err != nil {
			return fmt.Errorf("ensure treasury wallet for %s: %w", def.code, err)
		}
		issuance, err := s.ensureSystemWallet(ctx, entities.SystemCodeIssuance, asset.ID())
		if err != nil {
			return fmt.Errorf("ensure issuance wallet for %s: %w", def.code, err)
		}
		userWallet, err := s.ensureUserWallet(ctx, user.ID(), asset.ID())
		if err != nil {
			return fmt.Errorf("ensure user wallet for %s: %w", def.code, err)
		}

		if err := s.post(ctx, asset, issuance, treasury,
			"seed-issuance-"+asset.Code(), treasuryAmount); err != nil {
			return fmt.Errorf("fund treasury for %s: %w", def.code, err)
		}

		if def.welcomeGrant > 0 {
			if err := s.post(ctx, asset, treasury, userWallet,
				"seed-welcome-"+user.ID().String()+"-"+asset.Code(), def.welcomeGrant); err != nil {
				return fmt.Errorf("welcome grant for %s: %w", def.code, err)
			}
		}
	}

	s.log.Info("seed world ready",
		slog.String("user", email),
		slog.String("user_id", user.ID().String()),
	)
	return nil
}

func (s *seeder) ensureUser(ctx context.Context, email string) (*entities.User, error) {
	existing, err := s.users.FindByEmail(ctx, email)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ports.ErrNotFound) {
		return nil, err
	}

	user, err := entities.NewUser(email)
	if err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	s.log.Info("created user", slog.String("email", email))
	return user, nil
}

func (s *seeder) ensureAsset(ctx context.Context, def seedAsset) (*entities.AssetType, error) {
	existing, err := s.assets.FindByCode(ctx, def.code)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ports.ErrNotFound) {
		return nil, err
	}

	asset, err := entities.NewAssetType(def.code, def.name)
	if err != nil {
		return nil, err
	}
	if err := s.assets.Create(ctx, asset); err != nil {
		return nil, err
	}
	s.log.Info("created asset type", slog.String("code", def.code))
	return asset, nil
}

func (s *seeder) ensureSystemWallet(ctx context.Context, systemCode string, assetTypeID uuid.UUID) (*entities.Wallet, error) {
	existing, err := s.wallets.FindSystemWallet(ctx, systemCode, assetTypeID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ports.ErrNotFound) {
		return nil, err
	}

	wallet, err := entities.NewSystemWallet(systemCode, assetTypeID)
	if err != nil {
		return nil, err
	}
	if err := s.wallets.Create(ctx, wallet); err != nil {
		return nil, err
	}
	s.log.Info("created system wallet", slog.String("system_code", systemCode))
	return wallet, nil
}

func (s *seeder) ensureUserWallet(ctx context.Context, userID, assetTypeID uuid.UUID) (*entities.Wallet, error) {
	existing, err := s.wallets.FindUserWallet(ctx, userID, assetTypeID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ports.ErrNotFound) {
		return nil, err
	}

	wallet, err := entities.NewUserWallet(userID, assetTypeID)
	if err != nil {
		return nil, err
	}
	if err := s.wallets.Create(ctx, wallet); err != nil {
		return nil, err
	}
	return wallet, nil
}

// post writes one balanced double entry from source to destination under a
// fixed idempotency key, so re-runs are no-ops.
func (s *seeder) post(
	ctx context.Context,
	asset *entities.AssetType,
	source, destination *entities.Wallet,
	key string,
	amount int64,
) error {
	if _, err := s.txs.FindByIdempotencyKey(ctx, key); err == nil {
		return nil
	} else if !errors.Is(err, ports.ErrNotFound) {
		return err
	}

	qty, err := valueobjects.NewAmount(amount)
	if err != nil {
		return err
	}

	body, err := json.Marshal(map[string]string{
		"assetCode": asset.Code(),
		"amount":    qty.String(),
	})
	if err != nil {
		return err
	}
	fp, err := fingerprint.Compute("SEED", "/seed/"+key, body)
	if err != nil {
		return err
	}

	tx, err := entities.NewTransaction(key, fp, entities.TransactionTypeTopup,
		qty, asset.ID(), source.ID(), destination.ID())
	if err != nil {
		return err
	}

	err = s.uow.Execute(ctx, func(txCtx context.Context) error {
		if err := s.txs.InsertProcessing(txCtx, tx); err != nil {
			return err
		}
		debit := entities.NewDebit(tx.ID(), source.ID(), asset.ID(), qty)
		credit := entities.NewCredit(tx.ID(), destination.ID(), asset.ID(), qty)
		if err := s.ledger.Append(txCtx, debit, credit); err != nil {
			return err
		}
		return s.txs.SetResult(txCtx, tx.ID(), entities.TransactionStatusPosted,
			http.StatusOK, body, "")
	})
	if err != nil {
		// A concurrent seeder won the key; nothing left to do.
		if errors.Is(err, ports.ErrDuplicateIdempotencyKey) {
			return nil
		}
		return err
	}

	s.log.Info("posted seed transaction",
		slog.String("key", key),
		slog.String("asset", asset.Code()),
		slog.String("amount", qty.String()),
	)
	return nil
}
