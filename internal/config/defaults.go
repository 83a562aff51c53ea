package config

const (
	defaultDataDir                  = "~/.local/share/copydesk"
	defaultLogDir                   = "~/.local/share/copydesk/logs"
	defaultKnowledgeDir             = "~/.local/share/copydesk/knowledge"
	defaultGeneratorBaseURL         = "https://openrouter.ai/api/v1/chat/completions"
	defaultGeneratorModel           = "anthropic/claude-sonnet-4.5"
	defaultGeneratorTimeoutSeconds  = 600
	defaultGeneratorMaxOutputTokens = 32000
	defaultGeneratorFormatRetries   = 2
	defaultQuestionEndpoint         = "https://api.dataforseo.com/v3/serp/google/organic/live/advanced"
	defaultQuestionTimeoutSeconds   = 60
	defaultEvidenceEndpoint         = "https://api.perplexity.ai/chat/completions"
	defaultEvidenceModel            = "sonar-pro"
	defaultEvidenceTimeoutSeconds   = 120
	defaultCompetitorPages          = 3
	defaultCompetitorTimeout        = 20
	defaultPublishTimeoutSeconds    = 30
	defaultNotifyRequestTimeout     = 10
	defaultMaxValidationRetries     = 2
	defaultErrorLogLimit            = 4000
	defaultLogFormat                = "console"
	defaultLogLevel                 = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:      defaultDataDir,
			LogDir:       defaultLogDir,
			KnowledgeDir: defaultKnowledgeDir,
		},
		Generator: Generator{
			BaseURL:          defaultGeneratorBaseURL,
			Model:            defaultGeneratorModel,
			TimeoutSeconds:   defaultGeneratorTimeoutSeconds,
			MaxOutputTokens:  defaultGeneratorMaxOutputTokens,
			MaxFormatRetries: defaultGeneratorFormatRetries,
		},
		Research: Research{
			QuestionEndpoint:         defaultQuestionEndpoint,
			QuestionTimeoutSeconds:   defaultQuestionTimeoutSeconds,
			EvidenceEndpoint:         defaultEvidenceEndpoint,
			EvidenceModel:            defaultEvidenceModel,
			EvidenceTimeoutSeconds:   defaultEvidenceTimeoutSeconds,
			CompetitorPages:          defaultCompetitorPages,
			CompetitorTimeoutSeconds: defaultCompetitorTimeout,
		},
		Publish: Publish{
			TimeoutSeconds: defaultPublishTimeoutSeconds,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			RunEvents:      true,
			Review:         true,
			Errors:         true,
		},
		Pipeline: Pipeline{
			MaxValidationRetries: defaultMaxValidationRetries,
			ErrorLogLimit:        defaultErrorLogLimit,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
