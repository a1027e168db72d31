package event

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/intrack/internal/canon"
)

// Payload is the sealed sum type of event payloads.
// Every variant except CreateIssue targets an existing issue.
type Payload interface {
	Kind() Kind
	// Issue returns the target issue id, or "" for CreateIssue.
	Issue() string
	fields() canon.Object
	validate() error
}

// CreateIssue opens a new issue. The issue id is the id of this event.
type CreateIssue struct {
	Title    string            `json:"title"`
	Body     string            `json:"body,omitempty"`
	Priority Priority          `json:"priority,omitempty"`
	Tags     []string          `json:"tags,omitempty"`
	Fields   map[string]string `json:"fields,omitempty"`
}

type EditTitle struct {
	IssueID string `json:"issue"`
	Title   string `json:"title"`
}

type EditBody struct {
	IssueID string `json:"issue"`
	Body    string `json:"body"`
}

type AddComment struct {
	IssueID string `json:"issue"`
	Body    string `json:"body"`
}

// EditComment replaces the body of the comment created by event CommentID.
type EditComment struct {
	IssueID   string `json:"issue"`
	CommentID string `json:"comment"`
	Body      string `json:"body"`
}

type ChangeStatus struct {
	IssueID string `json:"issue"`
	Status  Status `json:"status"`
}

type ChangePriority struct {
	IssueID  string   `json:"issue"`
	Priority Priority `json:"priority"`
}

type AddTag struct {
	IssueID string `json:"issue"`
	Tag     string `json:"tag"`
}

type RemoveTag struct {
	IssueID string `json:"issue"`
	Tag     string `json:"tag"`
}

// SetField sets a free-form key/value field. An empty value clears it.
type SetField struct {
	IssueID string `json:"issue"`
	Key     string `json:"key"`
	Value   string `json:"value,omitempty"`
}

// Unknown is a payload of a kind this version does not interpret.
// The raw payload stays in Event.Data.
type Unknown struct {
	Name string
}

func (CreateIssue) Kind() Kind    { return KindCreateIssue }
func (EditTitle) Kind() Kind      { return KindEditTitle }
func (EditBody) Kind() Kind       { return KindEditBody }
func (AddComment) Kind() Kind     { return KindAddComment }
func (EditComment) Kind() Kind    { return KindEditComment }
func (ChangeStatus) Kind() Kind   { return KindChangeStatus }
func (ChangePriority) Kind() Kind { return KindChangePriority }
func (AddTag) Kind() Kind         { return KindAddTag }
func (RemoveTag) Kind() Kind      { return KindRemoveTag }
func (SetField) Kind() Kind       { return KindSetField }
func (u Unknown) Kind() Kind      { return Kind(u.Name) }

func (CreateIssue) Issue() string      { return "" }
func (p EditTitle) Issue() string      { return p.IssueID }
func (p EditBody) Issue() string       { return p.IssueID }
func (p AddComment) Issue() string     { return p.IssueID }
func (p EditComment) Issue() string    { return p.IssueID }
func (p ChangeStatus) Issue() string   { return p.IssueID }
func (p ChangePriority) Issue() string { return p.IssueID }
func (p AddTag) Issue() string         { return p.IssueID }
func (p RemoveTag) Issue() string      { return p.IssueID }
func (p SetField) Issue() string       { return p.IssueID }
func (Unknown) Issue() string          { return "" }

func (p CreateIssue) fields() canon.Object {
	obj := canon.Object{"title": canon.String(p.Title)}
	if p.Body != "" {
		obj["body"] = canon.String(p.Body)
	}
	if p.Priority != PriorityUnset {
		obj["priority"] = canon.String(p.Priority.String())
	}
	if len(p.Tags) > 0 {
		tags := slices.Clone(p.Tags)
		slices.Sort(tags)
		obj["tags"] = canon.Strings(slices.Compact(tags))
	}
	if len(p.Fields) > 0 {
		fields := make(canon.Object, len(p.Fields))
		for k, v := range p.Fields {
			fields[k] = canon.String(v)
		}
		obj["fields"] = fields
	}
	return obj
}

func (p EditTitle) fields() canon.Object {
	return canon.Object{"issue": canon.String(p.IssueID), "title": canon.String(p.Title)}
}

func (p EditBody) fields() canon.Object {
	return canon.Object{"issue": canon.String(p.IssueID), "body": canon.String(p.Body)}
}

func (p AddComment) fields() canon.Object {
	return canon.Object{"issue": canon.String(p.IssueID), "body": canon.String(p.Body)}
}

func (p EditComment) fields() canon.Object {
	return canon.Object{
		"issue":   canon.String(p.IssueID),
		"comment": canon.String(p.CommentID),
		"body":    canon.String(p.Body),
	}
}

func (p ChangeStatus) fields() canon.Object {
	return canon.Object{"issue": canon.String(p.IssueID), "status": canon.String(p.Status.String())}
}

func (p ChangePriority) fields() canon.Object {
	return canon.Object{"issue": canon.String(p.IssueID), "priority": canon.String(p.Priority.String())}
}

func (p AddTag) fields() canon.Object {
	return canon.Object{"issue": canon.String(p.IssueID), "tag": canon.String(p.Tag)}
}

func (p RemoveTag) fields() canon.Object {
	return canon.Object{"issue": canon.String(p.IssueID), "tag": canon.String(p.Tag)}
}

func (p SetField) fields() canon.Object {
	obj := canon.Object{"issue": canon.String(p.IssueID), "key": canon.String(p.Key)}
	if p.Value != "" {
		obj["value"] = canon.String(p.Value)
	}
	return obj
}

func (Unknown) fields() canon.Object { return nil }

func (p CreateIssue) validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidPayload)
	}
	if p.Priority < PriorityUnset || p.Priority > PriorityBlocker {
		return fmt.Errorf("%w: invalid priority %d", ErrInvalidPayload, int(p.Priority))
	}
	for _, tag := range p.Tags {
		if err := validateTag(tag); err != nil {
			return err
		}
	}
	for k := range p.Fields {
		if strings.TrimSpace(k) == "" {
			return fmt.Errorf("%w: empty field key", ErrInvalidPayload)
		}
	}
	return nil
}

func (p EditTitle) validate() error {
	if err := validateIssue(p.IssueID); err != nil {
		return err
	}
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidPayload)
	}
	return nil
}

func (p EditBody) validate() error { return validateIssue(p.IssueID) }

func (p AddComment) validate() error {
	if err := validateIssue(p.IssueID); err != nil {
		return err
	}
	if strings.TrimSpace(p.Body) == "" {
		return fmt.Errorf("%w: comment body is required", ErrInvalidPayload)
	}
	return nil
}

func (p EditComment) validate() error {
	if err := validateIssue(p.IssueID); err != nil {
		return err
	}
	if !ValidID(p.CommentID) {
		return fmt.Errorf("%w: invalid comment id %q", ErrInvalidPayload, p.CommentID)
	}
	if strings.TrimSpace(p.Body) == "" {
		return fmt.Errorf("%w: comment body is required", ErrInvalidPayload)
	}
	return nil
}

func (p ChangeStatus) validate() error {
	if err := validateIssue(p.IssueID); err != nil {
		return err
	}
	if p.Status != StatusOpen && p.Status != StatusClosed {
		return fmt.Errorf("%w: invalid status %d", ErrInvalidPayload, int(p.Status))
	}
	return nil
}

func (p ChangePriority) validate() error {
	if err := validateIssue(p.IssueID); err != nil {
		return err
	}
	if p.Priority <= PriorityUnset || p.Priority > PriorityBlocker {
		return fmt.Errorf("%w: invalid priority %d", ErrInvalidPayload, int(p.Priority))
	}
	return nil
}

func (p AddTag) validate() error {
	if err := validateIssue(p.IssueID); err != nil {
		return err
	}
	return validateTag(p.Tag)
}

func (p RemoveTag) validate() error {
	if err := validateIssue(p.IssueID); err != nil {
		return err
	}
	return validateTag(p.Tag)
}

func (p SetField) validate() error {
	if err := validateIssue(p.IssueID); err != nil {
		return err
	}
	if strings.TrimSpace(p.Key) == "" {
		return fmt.Errorf("%w: field key is required", ErrInvalidPayload)
	}
	return nil
}

func (u Unknown) validate() error {
	if u.Name == "" {
		return fmt.Errorf("%w: empty kind", ErrInvalidPayload)
	}
	if Kind(u.Name).Known() {
		return fmt.Errorf("%w: %s is a known kind", ErrInvalidPayload, u.Name)
	}
	return nil
}

func validateIssue(id string) error {
	if !ValidID(id) {
		return fmt.Errorf("%w: invalid issue id %q", ErrInvalidPayload, id)
	}
	return nil
}

func validateTag(tag string) error {
	if tag == "" || strings.ContainsAny(tag, " \t\r\n,") {
		return fmt.Errorf("%w: invalid tag %q", ErrInvalidPayload, tag)
	}
	return nil
}

// decodePayload interprets canonical payload bytes for the given kind.
// Fields this version does not know are ignored here and kept in Event.Data.
func decodePayload(kind Kind, data []byte) (Payload, error) {
	switch kind {
	case KindCreateIssue:
		return decodeAs[CreateIssue](data)
	case KindEditTitle:
		return decodeAs[EditTitle](data)
	case KindEditBody:
		return decodeAs[EditBody](data)
	case KindAddComment:
		return decodeAs[AddComment](data)
	case KindEditComment:
		return decodeAs[EditComment](data)
	case KindChangeStatus:
		return decodeAs[ChangeStatus](data)
	case KindChangePriority:
		return decodeAs[ChangePriority](data)
	case KindAddTag:
		return decodeAs[AddTag](data)
	case KindRemoveTag:
		return decodeAs[RemoveTag](data)
	case KindSetField:
		return decodeAs[SetField](data)
	default:
		u := Unknown{Name: string(kind)}
		if err := u.validate(); err != nil {
			return nil, err
		}
		return u, nil
	}
}

func decodeAs[P Payload](data []byte) (Payload, error) {
	var p P
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Field names the mutable field a payload overwrites, used to detect
// concurrent writes. It returns "" for payloads that only add state.
func Field(p Payload) string {
	switch v := p.(type) {
	case EditTitle:
		return "title"
	case EditBody:
		return "body"
	case ChangeStatus:
		return "status"
	case ChangePriority:
		return "priority"
	case EditComment:
		return "comment:" + v.CommentID
	case AddTag:
		return "tag:" + v.Tag
	case RemoveTag:
		return "tag:" + v.Tag
	case SetField:
		return "field:" + v.Key
	}
	return ""
}
