// Package orchestrator routes a free-text request end to end.
//
// A Router classifies the request (cache, rule classifier, escalation gate,
// deep classifier), decomposes it when the intent allows parallel work,
// levels the subtasks into phases and runs them on the scheduler. Every
// decision is recorded in the returned Trace.
//
// Example usage:
//
//	router := orchestrator.New(
//		orchestrator.RequiredConfig{Catalog: catalog, Executor: executor},
//		orchestrator.WithCache(intentCache),
//		orchestrator.WithClassifier(deep),
//	)
//	result, err := router.Route(ctx, models.Request{Text: "实现用户管理、商品管理、订单处理"})
package orchestrator
