package pollengine

import (
	"log/slog"

	httpadapter "github.com/ethanmiles0/VoteGrid/contexts/ballot-privacy/poll-engine/adapters/http"
	"github.com/ethanmiles0/VoteGrid/contexts/ballot-privacy/poll-engine/adapters/memory"
	"github.com/ethanmiles0/VoteGrid/contexts/ballot-privacy/poll-engine/application/commands"
	"github.com/ethanmiles0/VoteGrid/contexts/ballot-privacy/poll-engine/application/queries"
	"github.com/ethanmiles0/VoteGrid/contexts/ballot-privacy/poll-engine/ports"
)

// EnginePrincipal is the identity the poll engine registers on every counter
// handle it creates, so later homomorphic updates and the finalize step keep
// decryption authorization.
const EnginePrincipal = "votegrid/poll-engine"

type Module struct {
	Handler httpadapter.Handler
	Store   *memory.Store
	Cipher  *memory.CipherSim
}

type Dependencies struct {
	Polls   ports.PollRegistry
	Ledger  ports.VoterLedger
	Ballots ports.BallotCommitter
	Cipher  ports.CipherEngine
	Outbox  ports.OutboxWriter
	Clock   ports.Clock
	IDGen   ports.IDGenerator
	Logger  *slog.Logger
}

func NewModule(deps Dependencies) Module {
	tally := commands.TallyAccumulator{
		Cipher:    deps.Cipher,
		Principal: EnginePrincipal,
		Logger:    deps.Logger,
	}
	pollUseCase := commands.PollUseCase{
		Polls:     deps.Polls,
		Ledger:    deps.Ledger,
		Ballots:   deps.Ballots,
		Cipher:    deps.Cipher,
		Tally:     tally,
		Outbox:    deps.Outbox,
		Clock:     deps.Clock,
		IDGen:     deps.IDGen,
		Locks:     commands.NewPollLocks(),
		Principal: EnginePrincipal,
		Logger:    deps.Logger,
	}
	queryUseCase := queries.PollQueryUseCase{
		Polls:  deps.Polls,
		Ledger: deps.Ledger,
		Clock:  deps.Clock,
	}
	return Module{
		Handler: httpadapter.Handler{
			Polls:   pollUseCase,
			Queries: queryUseCase,
			Logger:  deps.Logger,
		},
	}
}

// NewInMemoryModule wires the module against the in-memory store and the
// plaintext cipher simulator; used by tests and local runs without postgres.
func NewInMemoryModule(logger *slog.Logger) Module {
	store := memory.NewStore()
	cipher := memory.NewCipherSim()
	module := NewModule(Dependencies{
		Polls:   store,
		Ledger:  store,
		Ballots: store,
		Cipher:  cipher,
		Outbox:  store,
		Clock:   store,
		IDGen:   store,
		Logger:  logger,
	})
	module.Store = store
	module.Cipher = cipher
	return module
}
