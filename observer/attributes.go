package observer

import "go.opentelemetry.io/otel/attribute"

// Attribute keys for orchestrator observability spans and metrics.
var (
	AttrLLMModel    = attribute.Key("llm.model")
	AttrLLMProvider = attribute.Key("llm.provider")

	AttrTokensInput  = attribute.Key("llm.tokens.input")
	AttrTokensOutput = attribute.Key("llm.tokens.output")

	AttrSessionID  = attribute.Key("orchestrator.session_id")
	AttrTurnStatus = attribute.Key("orchestrator.turn_status")
	AttrSpecialist = attribute.Key("orchestrator.specialist")
	AttrConfidence = attribute.Key("orchestrator.routing_confidence")
	AttrHandoffs   = attribute.Key("orchestrator.handoff_count")
	AttrQuality    = attribute.Key("orchestrator.quality_overall")
)
