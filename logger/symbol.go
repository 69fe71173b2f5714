package logger

import (
	"github.com/halcyonlabs/claimd/sym"
	"go.uber.org/zap"
)

// Symbol-aware logging helpers.
// These functions attach the subsystem symbol as a structured field rather
// than embedding it in the message, keeping messages clean while logs stay
// queryable by symbol.
//
// Usage:
//
//	type Scheduler struct {
//	    claimLog *zap.SugaredLogger
//	}
//	s.claimLog = logger.AddClaimSymbol(baseLogger)

// AddClaimSymbol wraps a logger with the Claim symbol (꩜)
func AddClaimSymbol(l *zap.SugaredLogger) *zap.SugaredLogger {
	return l.With(FieldSymbol, sym.Claim)
}

// AddClaimOpenSymbol wraps a logger with the ClaimOpen symbol (✿)
func AddClaimOpenSymbol(l *zap.SugaredLogger) *zap.SugaredLogger {
	return l.With(FieldSymbol, sym.ClaimOpen)
}

// AddClaimCloseSymbol wraps a logger with the ClaimClose symbol (❀)
func AddClaimCloseSymbol(l *zap.SugaredLogger) *zap.SugaredLogger {
	return l.With(FieldSymbol, sym.ClaimClose)
}

// AddPoolSymbol wraps a logger with the Pool symbol (⊓)
func AddPoolSymbol(l *zap.SugaredLogger) *zap.SugaredLogger {
	return l.With(FieldSymbol, sym.Pool)
}

// AddSchedSymbol wraps a logger with the Sched symbol (✦)
func AddSchedSymbol(l *zap.SugaredLogger) *zap.SugaredLogger {
	return l.With(FieldSymbol, sym.Sched)
}

// AddDBSymbol wraps a logger with the DB symbol (⊔)
func AddDBSymbol(l *zap.SugaredLogger) *zap.SugaredLogger {
	return l.With(FieldSymbol, sym.DB)
}

// AddNotifySymbol wraps a logger with the Notify symbol (⟶)
func AddNotifySymbol(l *zap.SugaredLogger) *zap.SugaredLogger {
	return l.With(FieldSymbol, sym.Notify)
}

// WithSymbol returns the global logger with the given symbol as a field.
// For ad-hoc symbol usage not covered by the helpers above.
func WithSymbol(symbol string) *zap.SugaredLogger {
	return Logger.With(FieldSymbol, symbol)
}
