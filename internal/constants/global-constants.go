package constants

// Preference categories
const (
	CategoryBlog        = "blogNotifications"
	CategoryBrandingKit = "brandingKitReady"
	CategoryTaskMessage = "taskMessages"
)

// History record types
const (
	NotificationTypeBlogPost    = "new_blog_post"
	NotificationTypeBrandingKit = "branding_kit_ready"
	NotificationTypeTaskMessage = "task_message"
	NotificationTypeTest        = "test"
)

// Firestore collections
const (
	CollectionPreferences  = "userNotificationPreferences"
	CollectionTokens       = "fcmTokens"
	CollectionHistory      = "notificationHistory"
	CollectionBrandKits    = "brandkits"
	CollectionBlogs        = "blogs"
	CollectionTaskRequests = "taskRequests"
)

// Task message senders
const (
	SenderExpert   = "expert"
	SenderCustomer = "customer"
)

// Event topics
const (
	TopicBlogPublished       = "events.blog_published"
	TopicBrandingKitReady    = "events.branding_kit_ready"
	TopicTaskMessageAppended = "events.task_message_appended"
	TopicTaskRequestCreated  = "events.task_request_created"
)

// Push provider permanent-failure codes
const (
	ErrCodeTokenNotRegistered = "messaging/registration-token-not-registered"
	ErrCodeInvalidToken       = "messaging/invalid-registration-token"
	ErrCodeUnknown            = "messaging/unknown-error"
)

const (
	BrandKitStatusReady = "ready"
	MessageKindFile     = "file"
	DefaultBlogBody     = "A new blog post has been published!"
	TaskMessagePreview  = 50
)
