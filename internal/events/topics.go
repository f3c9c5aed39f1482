package events

// Topic names used across FuseTech services.
const (
	TopicAchievementEvents  = "achievement.events"
	TopicRewardEvents       = "reward.events"
	TopicNotificationEvents = "notification.events"
)
