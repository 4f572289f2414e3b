// messages.go - Conversations, messages, read receipts and the websocket endpoint

package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"go-nutri-backend/logger"
	"go-nutri-backend/middleware"
	"go-nutri-backend/models"
	"go-nutri-backend/realtime"
	"go-nutri-backend/textnorm"
)

const (
	defaultMessageLimit = 50
	maxMessageLimit     = 200
	previewRunes        = 100 // conversation last_message preview
)

// participants returns the user IDs on both sides of a conversation whose
// Patient is loaded.
func participants(conv models.Conversation) []uint {
	return []uint{conv.NutritionistID, conv.Patient.UserID}
}

func isParticipant(conv models.Conversation, userID uint) bool {
	return conv.NutritionistID == userID || conv.Patient.UserID == userID
}

// conversationScope limits a query to the conversations userID takes part in.
func conversationScope(db *gorm.DB, userID uint) *gorm.DB {
	return db.Where("conversations.nutritionist_id = ? OR conversations.patient_id IN (?)",
		userID, db.Session(&gorm.Session{NewDB: true}).Model(&models.Patient{}).Select("id").Where("user_id = ?", userID))
}

// loadConversation fetches a conversation the caller belongs to.
func loadConversation(db *gorm.DB, id, userID uint) (models.Conversation, error) {
	var conv models.Conversation
	err := db.Preload("Patient").First(&conv, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return conv, fmt.Errorf("conversation %w", errNotFound)
	}
	if err != nil {
		return conv, err
	}
	if !isParticipant(conv, userID) {
		return conv, errForbidden
	}
	return conv, nil
}

// ConversationMembers lets sockets check typing events against the database.
func ConversationMembers(db *gorm.DB) realtime.MembersFunc {
	return func(conversationID, userID uint) ([]uint, error) {
		conv, err := loadConversation(db, conversationID, userID)
		if err != nil {
			return nil, err
		}
		var others []uint
		for _, id := range participants(conv) {
			if id != userID {
				others = append(others, id)
			}
		}
		return others, nil
	}
}

// Contacts lists everyone sharing a conversation with userID, for presence.
func Contacts(db *gorm.DB) realtime.ContactsFunc {
	return func(userID uint) []uint {
		var convs []models.Conversation
		if err := conversationScope(db.Preload("Patient"), userID).Find(&convs).Error; err != nil {
			logger.L().Warnw("load contacts", "user_id", userID, "error", err)
			return nil
		}
		set := mapset.NewThreadUnsafeSet[uint]()
		for _, conv := range convs {
			for _, id := range participants(conv) {
				if id != userID {
					set.Add(id)
				}
			}
		}
		out := set.ToSlice()
		sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
		return out
	}
}

// ListMessages - GET /api/messages?conversation_id=&limit=, newest first.
func (a *API) ListMessages(c *gin.Context) {
	uid := middleware.UserID(c)
	convID, ok := uintQuery(c, "conversation_id")
	if !ok {
		return
	}
	limit := defaultMessageLimit
	if raw, ok := uintQuery(c, "limit"); !ok {
		return
	} else if raw > 0 {
		limit = int(min(raw, maxMessageLimit))
	}

	q := a.DB.Model(&models.Message{}).Order("created_at desc").Order("id desc").Limit(limit)
	if convID != 0 {
		if _, err := loadConversation(a.DB, convID, uid); err != nil {
			fail(c, err)
			return
		}
		q = q.Where("conversation_id = ?", convID)
	} else {
		q = q.Where("conversation_id IN (?)", conversationScope(a.DB.Model(&models.Conversation{}).Select("id"), uid))
	}

	var msgs []models.Message
	if err := q.Find(&msgs).Error; err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// ConversationView is a conversation with its messages and unread count.
type ConversationView struct {
	models.Conversation
	Messages    []models.Message `json:"messages"`
	UnreadCount int              `json:"unread_count"`
	Online      bool             `json:"online"` // the other participant
}

// ListConversations - GET /api/conversations?archived=true
func (a *API) ListConversations(c *gin.Context) {
	uid := middleware.UserID(c)
	var convs []models.Conversation
	q := conversationScope(a.DB.Preload("Patient.User").Preload("Nutritionist"), uid).
		Where("archived = ?", c.Query("archived") == "true")
	if err := q.Find(&convs).Error; err != nil {
		fail(c, err)
		return
	}

	views := make([]ConversationView, 0, len(convs))
	for _, conv := range convs {
		var msgs []models.Message
		err := a.DB.Where("conversation_id = ?", conv.ID).
			Order("created_at desc").Order("id desc").Limit(defaultMessageLimit).Find(&msgs).Error
		if err != nil {
			fail(c, err)
			return
		}
		// oldest first for display
		for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
			msgs[i], msgs[j] = msgs[j], msgs[i]
		}

		var unread int64
		err = a.DB.Model(&models.Message{}).
			Where("conversation_id = ? AND sender_id <> ? AND read = ?", conv.ID, uid, false).
			Count(&unread).Error
		if err != nil {
			fail(c, err)
			return
		}

		other := conv.Patient.UserID
		if other == uid {
			other = conv.NutritionistID
		}
		views = append(views, ConversationView{
			Conversation: conv,
			Messages:     msgs,
			UnreadCount:  int(unread),
			Online:       a.Hub != nil && a.Hub.Online(other),
		})
	}

	sort.SliceStable(views, func(i, j int) bool {
		return lastActivity(views[i].Conversation).After(lastActivity(views[j].Conversation))
	})
	c.JSON(http.StatusOK, gin.H{"conversations": views})
}

func lastActivity(conv models.Conversation) time.Time {
	if conv.LastMessageAt != nil {
		return *conv.LastMessageAt
	}
	return conv.CreatedAt
}

type SendMessageInput struct {
	ConversationID uint   `json:"conversation_id"`
	RecipientID    uint   `json:"recipient_id"` // user ID, starts a conversation if needed
	Content        string `json:"content" binding:"required"`
	Type           string `json:"type"`
	Priority       string `json:"priority"`
}

// SendMessage - POST /api/messages
func (a *API) SendMessage(c *gin.Context) {
	// STEP 1: Admin pause check comes first
	if a.Messaging != nil {
		if st := a.Messaging.State(); st.Paused {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error":     "Messaging is currently paused",
				"reason":    st.Reason,
				"paused_by": st.By,
				"paused_at": st.At,
			})
			return
		}
	}

	var input SendMessageInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	content := strings.TrimSpace(input.Content)
	if content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
		return
	}
	msgType := input.Type
	switch msgType {
	case "":
		msgType = models.MessageText
	case models.MessageText, models.MessageImage, models.MessageFile:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown message type"})
		return
	}
	priority := input.Priority
	if priority == "" {
		priority = "normal"
	}

	// STEP 2: Find or open the conversation
	uid := middleware.UserID(c)
	var conv models.Conversation
	var err error
	switch {
	case input.ConversationID != 0:
		conv, err = loadConversation(a.DB, input.ConversationID, uid)
	case input.RecipientID != 0:
		conv, err = a.openConversation(c, input.RecipientID)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation_id or recipient_id is required"})
		return
	}
	if err != nil {
		fail(c, err)
		return
	}

	// STEP 3: Store and update the preview
	now := time.Now()
	msg := models.Message{
		UUID:           uuid.NewString(),
		ConversationID: conv.ID,
		SenderID:       uid,
		Content:        content,
		Type:           msgType,
		Priority:       priority,
		CreatedAt:      now,
	}
	err = a.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&msg).Error; err != nil {
			return err
		}
		return tx.Model(&models.Conversation{}).Where("id = ?", conv.ID).Updates(map[string]interface{}{
			"last_message":    preview(content),
			"last_message_at": now,
		}).Error
	})
	if err != nil {
		fail(c, err)
		return
	}

	// STEP 4: Push to everyone connected on both sides
	if a.Hub != nil {
		a.Hub.SendToUsers(participants(conv), realtime.NewEvent(realtime.EventNewMessage, conv.ID, uid, msg))
	}
	c.JSON(http.StatusCreated, msg)
}

func preview(content string) string {
	r := []rune(content)
	if len(r) > previewRunes {
		return string(r[:previewRunes])
	}
	return content
}

// openConversation returns the conversation between the caller and
// recipient, creating it on first contact. Only a patient and their own
// nutritionist may talk.
func (a *API) openConversation(c *gin.Context, recipientID uint) (models.Conversation, error) {
	uid := middleware.UserID(c)
	var patient models.Patient
	var nutritionistID uint
	switch middleware.Role(c) {
	case models.RoleNutritionist:
		p, err := a.profileOf(recipientID)
		if err != nil {
			return models.Conversation{}, err
		}
		if p.NutritionistID != uid {
			return models.Conversation{}, errForbidden
		}
		patient, nutritionistID = p, uid
	case models.RolePatient:
		p, err := a.profileOf(uid)
		if err != nil {
			return models.Conversation{}, err
		}
		if p.NutritionistID != recipientID {
			return models.Conversation{}, errForbidden
		}
		patient, nutritionistID = p, recipientID
	default:
		return models.Conversation{}, errForbidden
	}

	conv := models.Conversation{PatientID: patient.ID, NutritionistID: nutritionistID}
	err := a.DB.Where(models.Conversation{PatientID: patient.ID, NutritionistID: nutritionistID}).
		Omit("Patient", "Nutritionist").FirstOrCreate(&conv).Error
	if err != nil {
		return conv, err
	}
	conv.Patient = patient
	return conv, nil
}

type MarkReadInput struct {
	MessageIDs     []uint `json:"message_ids"`
	ConversationID uint   `json:"conversation_id"`
}

// MarkRead - PUT /api/messages/read marks messages from the other side as
// read, by ID or for a whole conversation.
func (a *API) MarkRead(c *gin.Context) {
	var input MarkReadInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(input.MessageIDs) == 0 && input.ConversationID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message_ids or conversation_id is required"})
		return
	}
	uid := middleware.UserID(c)

	q := a.DB.Where("sender_id <> ? AND read = ?", uid, false)
	if input.ConversationID != 0 {
		if _, err := loadConversation(a.DB, input.ConversationID, uid); err != nil {
			fail(c, err)
			return
		}
		q = q.Where("conversation_id = ?", input.ConversationID)
	} else {
		q = q.Where("conversation_id IN (?)", conversationScope(a.DB.Model(&models.Conversation{}).Select("id"), uid))
	}
	if len(input.MessageIDs) > 0 {
		q = q.Where("id IN ?", input.MessageIDs)
	}

	var targets []models.Message
	if err := q.Find(&targets).Error; err != nil {
		fail(c, err)
		return
	}
	if len(targets) == 0 {
		c.JSON(http.StatusOK, gin.H{"updated": 0})
		return
	}

	byConv := map[uint][]uint{}
	ids := make([]uint, len(targets))
	for i, m := range targets {
		ids[i] = m.ID
		byConv[m.ConversationID] = append(byConv[m.ConversationID], m.ID)
	}
	if err := a.DB.Model(&models.Message{}).Where("id IN ?", ids).Update("read", true).Error; err != nil {
		fail(c, err)
		return
	}

	if a.Hub != nil {
		for convID, msgIDs := range byConv {
			conv, err := loadConversation(a.DB, convID, uid)
			if err != nil {
				continue
			}
			data := realtime.ReadData{MessageIDs: msgIDs, ReaderID: uid}
			a.Hub.SendToUsers(participants(conv), realtime.NewEvent(realtime.EventMessageRead, convID, uid, data))
		}
	}
	c.JSON(http.StatusOK, gin.H{"updated": len(ids)})
}

// ToggleArchive - PUT /api/conversations/:id/archive
func (a *API) ToggleArchive(c *gin.Context) {
	a.toggle(c, "archived", func(conv *models.Conversation) bool {
		conv.Archived = !conv.Archived
		return conv.Archived
	})
}

// TogglePin - PUT /api/conversations/:id/pin
func (a *API) TogglePin(c *gin.Context) {
	a.toggle(c, "pinned", func(conv *models.Conversation) bool {
		conv.Pinned = !conv.Pinned
		return conv.Pinned
	})
}

func (a *API) toggle(c *gin.Context, column string, flip func(*models.Conversation) bool) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	conv, err := loadConversation(a.DB, id, middleware.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	value := flip(&conv)
	if err := a.DB.Model(&models.Conversation{}).Where("id = ?", conv.ID).Update(column, value).Error; err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

// ServeWS - GET /ws?token=
func (a *API) ServeWS(c *gin.Context) {
	var user models.User
	if err := a.DB.First(&user, middleware.UserID(c)).Error; err != nil {
		fail(c, err)
		return
	}
	err := realtime.Serve(a.Hub, a.Upgrader, c.Writer, c.Request, user.ID, user.Name, ConversationMembers(a.DB))
	if err != nil {
		// the upgrader already wrote the HTTP error
		logger.L().Debugw("websocket upgrade failed", "user_id", user.ID, "error", err)
	}
}

// MessageHit is one search result.
type MessageHit struct {
	models.Message
	Highlighted string `json:"highlighted"` // content with matches in <mark>
	SenderName  string `json:"sender_name"`
	SenderRole  string `json:"sender_role"`
}

// SearchMessages - GET /api/messages/search across the caller's conversations.
//
// Filters: q (case and accent insensitive), conversation_id, sender (me,
// nutritionist, patient or a user ID), from and to (YYYY-MM-DD, inclusive),
// type, priority, read (read or unread) and limit. Newest first.
func (a *API) SearchMessages(c *gin.Context) {
	uid := middleware.UserID(c)
	query := strings.TrimSpace(c.Query("q"))
	if query != "" && !textnorm.Searchable(query) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q needs letters or digits"})
		return
	}
	convID, ok := uintQuery(c, "conversation_id")
	if !ok {
		return
	}
	limit := defaultMessageLimit
	if raw, ok := uintQuery(c, "limit"); !ok {
		return
	} else if raw > 0 {
		limit = int(min(raw, maxMessageLimit))
	}

	// STEP 1: Scope to the caller's conversations
	q := a.DB.Model(&models.Message{}).Preload("Sender").Order("created_at desc").Order("id desc")
	if convID != 0 {
		if _, err := loadConversation(a.DB, convID, uid); err != nil {
			fail(c, err)
			return
		}
		q = q.Where("conversation_id = ?", convID)
	} else {
		q = q.Where("conversation_id IN (?)", conversationScope(a.DB.Model(&models.Conversation{}).Select("id"), uid))
	}

	// STEP 2: Column filters
	switch sender := c.Query("sender"); sender {
	case "", "all":
	case "me":
		q = q.Where("sender_id = ?", uid)
	case models.RoleNutritionist, models.RolePatient:
		q = q.Where("sender_id IN (?)", a.DB.Model(&models.User{}).Select("id").Where("role = ?", sender))
	default:
		id, err := strconv.ParseUint(sender, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sender"})
			return
		}
		q = q.Where("sender_id = ?", id)
	}
	if from := c.Query("from"); from != "" {
		t, err := time.Parse(dateLayout, from)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from date"})
			return
		}
		q = q.Where("created_at >= ?", t)
	}
	if to := c.Query("to"); to != "" {
		t, err := time.Parse(dateLayout, to)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to date"})
			return
		}
		q = q.Where("created_at < ?", t.AddDate(0, 0, 1))
	}
	for _, f := range []struct{ param, column string }{{"type", "type"}, {"priority", "priority"}} {
		if v := strings.ToLower(c.Query(f.param)); v != "" && v != "all" {
			q = q.Where(f.column+" = ?", v)
		}
	}
	switch c.Query("read") {
	case "", "all":
	case "read":
		q = q.Where("read = ?", true)
	case "unread":
		q = q.Where("read = ?", false)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "read must be read, unread or all"})
		return
	}

	// STEP 3: Text match in Go so accents fold the same on every database
	var msgs []models.Message
	if query == "" {
		q = q.Limit(limit)
	}
	if err := q.Find(&msgs).Error; err != nil {
		fail(c, err)
		return
	}
	hits := []MessageHit{}
	for _, m := range msgs {
		if query != "" && !textnorm.Contains(m.Content, query) {
			continue
		}
		hit := MessageHit{Message: m, Highlighted: m.Content, SenderName: m.Sender.Name, SenderRole: m.Sender.Role}
		if query != "" {
			hit.Highlighted = textnorm.Highlight(m.Content, query, "<mark>", "</mark>")
		}
		hits = append(hits, hit)
		if len(hits) == limit {
			break
		}
	}
	c.JSON(http.StatusOK, gin.H{"results": hits, "total": len(hits)})
}
