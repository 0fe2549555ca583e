package consts

const (
	// DefaultDBName is the default database name.
	DefaultDBName = "lingua"

	// Table/collection names.
	TableNameConversations = "conversations"
	TableNameMessages      = "messages"
	TableNamePreferences   = "user_preferences"

	// DefaultTitle is the title a conversation starts with.
	DefaultTitle = "New Chat"

	// Column names
	ColOwnerID         = "owner_id"
	ColConversationID  = "conversation_id"
	ColTitle           = "title"
	ColContent         = "content"
	ColIsBot           = "is_bot"
	ColCreatedAt       = "created_at"
	ColUpdatedAt       = "updated_at"
	ColLastInteraction = "last_interaction"

	// Neo4j specific
	LabelConversation = "Conversation"
	LabelMessage      = "Message"
	LabelPreferences  = "Preferences"
	RelHasMessage     = "HAS_MESSAGE"
)
