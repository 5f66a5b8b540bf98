package types

import (
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// UUIDZero is the identifier of the synthetic root and node principals.
const UUIDZero = "00000000-0000-0000-0000-000000000000"

// TimestampFormat is the layout used for all client-visible timestamps.
const TimestampFormat = "2006-01-02 15:04"

// DatetimeNow returns the current UTC time formatted for clients.
func DatetimeNow() string {
	return time.Now().UTC().Format(TimestampFormat)
}

// NewID returns a fresh UUID string.
func NewID() string {
	return uuid.New().String()
}

// ValidUUID reports whether s parses as a UUID.
func ValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// NormalizeMail lowers a mail address. Mail uniqueness and login lookups are
// case-insensitive.
func NormalizeMail(mail string) string {
	return strings.ToLower(strings.TrimSpace(mail))
}

// User represents a platform account
type User struct {
	ID            string `json:"_id" bson:"_id"`
	FirstName     string `json:"first_name" bson:"first_name"`
	LastName      string `json:"last_name" bson:"last_name"`
	Mail          string `json:"mail" bson:"mail"`
	Secret        string `json:"secret,omitempty" bson:"secret"`
	AdminPlatform bool   `json:"admin_platform" bson:"admin_platform"`
}

// Name returns the user's display name
func (u *User) Name() string {
	if u.FirstName == "" && u.LastName == "" {
		return "anonymous"
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Sanitized returns a copy of the user without the hashed secret
func (u *User) Sanitized() *User {
	c := *u
	c.Secret = ""
	return &c
}

// Validate checks required fields
func (u *User) Validate() error {
	if u.ID == "" || !ValidUUID(u.ID) {
		return E(ErrInvalid, "user _id is missing or malformed")
	}
	if u.FirstName == "" || u.LastName == "" {
		return E(ErrInvalid, "user first_name and last_name are required")
	}
	if u.Mail == "" || !strings.Contains(u.Mail, "@") {
		return E(ErrInvalid, "user mail is missing or malformed")
	}
	return nil
}

// MediaStatus represents the lifecycle state of a media asset
type MediaStatus string

const (
	MediaPending MediaStatus = "PENDING"
	MediaReady   MediaStatus = "READY"
	MediaDeleted MediaStatus = "DELETED"
)

// Media represents a media asset in shared storage
type Media struct {
	ID         string            `json:"_id" bson:"_id"`
	UserID     string            `json:"user_id" bson:"user_id"`
	ParentID   string            `json:"parent_id,omitempty" bson:"parent_id,omitempty"`
	URI        string            `json:"uri" bson:"uri"`
	PublicURIs map[string]string `json:"public_uris" bson:"public_uris"`
	Filename   string            `json:"filename" bson:"filename"`
	Metadata   map[string]any    `json:"metadata" bson:"metadata"`
	Status     MediaStatus       `json:"status" bson:"status"`

	// Resolved on read when related entities are requested, never persisted.
	User   *User  `json:"user,omitempty" bson:"-"`
	Parent *Media `json:"parent,omitempty" bson:"-"`
}

// Title returns the mandatory metadata title, empty if unset.
func (m *Media) Title() string {
	if m.Metadata == nil {
		return ""
	}
	title, _ := m.Metadata["title"].(string)
	return title
}

// AddMetadata sets a metadata key, overwriting an existing value only if force is set
func (m *Media) AddMetadata(key string, value any, force bool) {
	if m.Metadata == nil {
		m.Metadata = map[string]any{}
	}
	if _, ok := m.Metadata[key]; ok && !force {
		return
	}
	m.Metadata[key] = value
}

// Published reports whether any publication holds a public URI for the media.
func (m *Media) Published() bool {
	return len(m.PublicURIs) > 0
}

// Validate checks required fields
func (m *Media) Validate() error {
	if m.ID == "" || !ValidUUID(m.ID) {
		return E(ErrInvalid, "media _id is missing or malformed")
	}
	if m.UserID == "" || !ValidUUID(m.UserID) {
		return E(ErrInvalid, "media user_id is missing or malformed")
	}
	if m.Filename == "" {
		return E(ErrInvalid, "media filename is required")
	}
	if m.Title() == "" {
		return E(ErrInvalid, "key title is required in media metadata")
	}
	switch m.Status {
	case MediaPending, MediaReady, MediaDeleted:
	default:
		return E(ErrInvalid, fmt.Sprintf("media status %q is unknown", m.Status))
	}
	return nil
}

// Encoder names accepted by transformation profiles.
const (
	EncoderCopy     = "copy"
	EncoderFFmpeg   = "ffmpeg"
	EncoderDashcast = "dashcast"
)

// EncoderNames lists the known encoders in display order.
var EncoderNames = []string{EncoderCopy, EncoderFFmpeg, EncoderDashcast}

// KnownEncoder reports whether name is an accepted encoder.
func KnownEncoder(name string) bool {
	for _, n := range EncoderNames {
		if n == name {
			return true
		}
	}
	return false
}

// TransformProfile is a named encoder configuration
type TransformProfile struct {
	ID            string `json:"_id" bson:"_id"`
	Title         string `json:"title" bson:"title"`
	Description   string `json:"description" bson:"description"`
	EncoderName   string `json:"encoder_name" bson:"encoder_name"`
	EncoderString string `json:"encoder_string" bson:"encoder_string"`
}

// IsDash reports whether the profile produces an MPEG-DASH output.
func (p *TransformProfile) IsDash() bool {
	return p.EncoderName == EncoderDashcast
}

// OutputFilename derives an output filename from the input one, keeping the
// extension for non-DASH profiles and forcing .mpd for DASH ones.
func (p *TransformProfile) OutputFilename(input, suffix string) string {
	ext := path.Ext(input)
	base := strings.TrimSuffix(input, ext)
	if p.IsDash() {
		ext = ".mpd"
	}
	if suffix != "" {
		suffix = "_" + suffix
	}
	return base + suffix + ext
}

// Validate checks required fields
func (p *TransformProfile) Validate() error {
	if p.ID == "" || !ValidUUID(p.ID) {
		return E(ErrInvalid, "profile _id is missing or malformed")
	}
	if p.Title == "" {
		return E(ErrInvalid, "profile title is required")
	}
	if !KnownEncoder(p.EncoderName) {
		return E(ErrInvalid, fmt.Sprintf("profile encoder_name %q is unknown", p.EncoderName))
	}
	return nil
}

// TaskStatus represents the lifecycle state of a task
type TaskStatus string

const (
	TaskPending  TaskStatus = "PENDING"
	TaskProgress TaskStatus = "PROGRESS"
	TaskSuccess  TaskStatus = "SUCCESS"
	TaskFailure  TaskStatus = "FAILURE"
	TaskRevoking TaskStatus = "REVOKING"
	TaskRevoked  TaskStatus = "REVOKED"
)

// Terminal reports whether a status admits no further transition.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskSuccess, TaskFailure, TaskRevoked:
		return true
	}
	return false
}

// InProgress reports whether the task still occupies a worker.
func (s TaskStatus) InProgress() bool {
	return s == TaskPending || s == TaskProgress
}

// TransformTask tracks one transcoding job dispatched to a worker queue
type TransformTask struct {
	ID         string         `json:"_id" bson:"_id"`
	UserID     string         `json:"user_id" bson:"user_id"`
	MediaInID  string         `json:"media_in_id" bson:"media_in_id"`
	MediaOutID string         `json:"media_out_id" bson:"media_out_id"`
	ProfileID  string         `json:"profile_id" bson:"profile_id"`
	SendEmail  bool           `json:"send_email" bson:"send_email"`
	Revoked    bool           `json:"revoked" bson:"revoked"`
	Status     TaskStatus     `json:"status" bson:"status"`
	Statistic  map[string]any `json:"statistic" bson:"statistic"`

	User     *User             `json:"user,omitempty" bson:"-"`
	MediaIn  *Media            `json:"media_in,omitempty" bson:"-"`
	MediaOut *Media            `json:"media_out,omitempty" bson:"-"`
	Profile  *TransformProfile `json:"profile,omitempty" bson:"-"`
}

// AddStatistic sets a statistic key, overwriting an existing value only if force is set
func (t *TransformTask) AddStatistic(key string, value any, force bool) {
	if t.Statistic == nil {
		t.Statistic = map[string]any{}
	}
	if _, ok := t.Statistic[key]; ok && !force {
		return
	}
	t.Statistic[key] = value
}

// CanTransition reports whether moving to status is allowed from the current one.
// Terminal states never transition, which makes duplicate callbacks harmless.
func (t *TransformTask) CanTransition(to TaskStatus) bool {
	if t.Status.Terminal() {
		return false
	}
	switch to {
	case TaskProgress:
		return t.Status == TaskPending || t.Status == TaskProgress
	case TaskSuccess, TaskFailure, TaskRevoked:
		return t.Status.InProgress()
	}
	return false
}

// Validate checks required fields
func (t *TransformTask) Validate() error {
	if t.ID == "" {
		return E(ErrInvalid, "task _id is missing")
	}
	if !ValidUUID(t.UserID) || !ValidUUID(t.MediaInID) || !ValidUUID(t.MediaOutID) || !ValidUUID(t.ProfileID) {
		return E(ErrInvalid, "task reference identifiers are missing or malformed")
	}
	return nil
}

// PublisherTask tracks one publication job dispatched to a worker queue
type PublisherTask struct {
	ID           string         `json:"_id" bson:"_id"`
	UserID       string         `json:"user_id" bson:"user_id"`
	MediaID      string         `json:"media_id" bson:"media_id"`
	SendEmail    bool           `json:"send_email" bson:"send_email"`
	Revoked      bool           `json:"revoked" bson:"revoked"`
	Status       TaskStatus     `json:"status" bson:"status"`
	PublishURI   string         `json:"publish_uri,omitempty" bson:"publish_uri,omitempty"`
	RevokeTaskID string         `json:"revoke_task_id,omitempty" bson:"revoke_task_id,omitempty"`
	Statistic    map[string]any `json:"statistic" bson:"statistic"`

	User  *User  `json:"user,omitempty" bson:"-"`
	Media *Media `json:"media,omitempty" bson:"-"`
}

// AddStatistic sets a statistic key, overwriting an existing value only if force is set
func (t *PublisherTask) AddStatistic(key string, value any, force bool) {
	if t.Statistic == nil {
		t.Statistic = map[string]any{}
	}
	if _, ok := t.Statistic[key]; ok && !force {
		return
	}
	t.Statistic[key] = value
}

// CanTransition reports whether moving to status is allowed from the current one.
func (t *PublisherTask) CanTransition(to TaskStatus) bool {
	if t.Status == TaskRevoked || t.Status == TaskFailure {
		return false
	}
	switch to {
	case TaskProgress:
		return t.Status == TaskPending || t.Status == TaskProgress
	case TaskSuccess, TaskFailure:
		return t.Status.InProgress()
	case TaskRevoking:
		return t.Status == TaskSuccess
	case TaskRevoked:
		return t.Status.InProgress() || t.Status == TaskRevoking
	}
	return false
}

// PublishHostname returns the host serving the published copy. Unpublish jobs
// are routed to the queue named after that host.
func (t *PublisherTask) PublishHostname() string {
	if t.PublishURI == "" {
		return ""
	}
	u, err := url.Parse(t.PublishURI)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// Validate checks required fields
func (t *PublisherTask) Validate() error {
	if t.ID == "" {
		return E(ErrInvalid, "task _id is missing")
	}
	if !ValidUUID(t.UserID) || !ValidUUID(t.MediaID) {
		return E(ErrInvalid, "task reference identifiers are missing or malformed")
	}
	return nil
}

// Environment is a named cloud deployment hosting worker units
type Environment struct {
	Name          string `json:"name" bson:"_id" yaml:"name"`
	Type          string `json:"type" bson:"type" yaml:"type"`
	Region        string `json:"region" bson:"region" yaml:"region"`
	AccessKey     string `json:"access_key,omitempty" bson:"access_key" yaml:"access_key"`
	SecretKey     string `json:"secret_key,omitempty" bson:"secret_key" yaml:"secret_key"`
	ControlBucket string `json:"control_bucket,omitempty" bson:"control_bucket" yaml:"control_bucket"`
}

// Sanitized returns a copy of the environment without credentials
func (e *Environment) Sanitized() *Environment {
	c := *e
	c.AccessKey = ""
	c.SecretKey = ""
	return &c
}

// Validate checks required fields
func (e *Environment) Validate() error {
	if e.Name == "" {
		return E(ErrInvalid, "environment name is required")
	}
	if e.Type == "" {
		return E(ErrInvalid, "environment type is required")
	}
	return nil
}

// UnitState represents the agent state of a worker unit
type UnitState string

const (
	UnitStarted UnitState = "started"
	UnitPending UnitState = "pending"
	UnitInstall UnitState = "installed"
	UnitError   UnitState = "error"
	UnitStopped UnitState = "stopped"
	UnitUnknown UnitState = "unknown"
)

// Errored reports whether the unit needs a resolved hint.
func (s UnitState) Errored() bool {
	return s == UnitError
}

// Unit is one worker instance of a service in an environment
type Unit struct {
	Number  int       `json:"number"`
	Service string    `json:"service"`
	State   UnitState `json:"state"`
	Machine string    `json:"machine,omitempty"`
	Address string    `json:"public_address,omitempty"`
}

// Service names managed by the capacity controller.
const (
	ServiceTransform = "transform"
	ServicePublisher = "publisher"
)

// ManagedServices lists the services driven by the planning table.
var ManagedServices = []string{ServiceTransform, ServicePublisher}
