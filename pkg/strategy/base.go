package strategy

// NoopStrategy supplies default no-op implementations of the optional
// capability interfaces (Starter, TradeObserver, Stopper). Embed it and
// override only the callbacks a strategy actually needs beyond OnBar.
type NoopStrategy struct{}

func (NoopStrategy) OnStart(ctx Context) error            { return nil }
func (NoopStrategy) OnTrade(ctx Context, fill Fill) error { return nil }
func (NoopStrategy) OnStop(ctx Context) error             { return nil }
