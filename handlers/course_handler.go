package handlers

import (
	"encoding/json"
	"strings"

	"github.com/anjiri1684/skillcoin/ledger"
	"github.com/anjiri1684/skillcoin/middleware"
	"github.com/anjiri1684/skillcoin/models"
	"github.com/anjiri1684/skillcoin/storage"
	"github.com/anjiri1684/skillcoin/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
	searchLimit     = 20
)

type CreateCourseRequest struct {
	Title       string   `json:"title" validate:"required,min=3,max=255"`
	Description string   `json:"description" validate:"max=10000"`
	Price       int64    `json:"price" validate:"gte=0"`
	SkillTags   []string `json:"skill_tags" validate:"max=20"`
	VideoURL    *string  `json:"video_url" validate:"omitempty,url"`
}

type UpdateCourseVideoRequest struct {
	VideoPath string `json:"video_path" validate:"required"`
}

type CourseView struct {
	models.Course
	Purchased bool   `json:"purchased,omitempty"`
	MatchType string `json:"match_type,omitempty"`
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = utils.NormalizeSkill(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// CreateCourse stores a new course for the calling teacher and links it from
// the teacher's profile.
func (h *Handler) CreateCourse(c *fiber.Ctx) error {
	const op = "courses.create"
	teacherID, err := caller(c, op)
	if err != nil {
		return h.fail(c, op, err)
	}
	var req CreateCourseRequest
	if err := bind(c, op, &req); err != nil {
		return h.fail(c, op, err)
	}

	course := models.Course{
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		TeacherID:   teacherID,
		Price:       req.Price,
		SkillTags:   normalizeTags(req.SkillTags),
		VideoURL:    req.VideoURL,
	}
	err = h.db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		var teacher models.User
		res := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", teacherID).Limit(1).Find(&teacher)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ledger.NewError(ledger.KindNotFound, op, "User not found.")
		}
		if !teacher.IsTeacher() {
			return ledger.NewError(ledger.KindPermissionDenied, op, "Only teachers can create courses.")
		}
		if err := tx.Create(&course).Error; err != nil {
			return err
		}
		teacher.CourseIDs = append(teacher.CourseIDs, course.ID)
		return tx.Model(&models.User{}).Where("id = ?", teacherID).Update("course_ids", teacher.CourseIDs).Error
	})
	if err != nil {
		return h.fail(c, op, err)
	}
	h.log.Info("course created", "course_id", course.ID, "teacher_id", teacherID)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "courseId": course.ID, "course": course})
}

func (h *Handler) GetCourse(c *fiber.Ctx) error {
	const op = "courses.get"
	course, err := h.loadCourse(c, op, c.Params("courseId"))
	if err != nil {
		return h.fail(c, op, err)
	}
	return c.JSON(course)
}

func (h *Handler) loadCourse(c *fiber.Ctx, op, id string) (*models.Course, error) {
	var course models.Course
	res := h.db.WithContext(c.UserContext()).Where("id = ?", id).Limit(1).Find(&course)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ledger.NewError(ledger.KindNotFound, op, "Course not found.")
	}
	return &course, nil
}

// UpdateCourseVideo records where the uploaded video lives. Only the owning
// teacher may change it.
func (h *Handler) UpdateCourseVideo(c *fiber.Ctx) error {
	const op = "courses.updateVideo"
	userID, err := caller(c, op)
	if err != nil {
		return h.fail(c, op, err)
	}
	var req UpdateCourseVideoRequest
	if err := bind(c, op, &req); err != nil {
		return h.fail(c, op, err)
	}
	course, err := h.loadCourse(c, op, c.Params("courseId"))
	if err != nil {
		return h.fail(c, op, err)
	}
	if course.TeacherID != userID {
		return h.fail(c, op, ledger.NewError(ledger.KindPermissionDenied, op, "You can only update your own courses."))
	}
	path := strings.TrimSpace(req.VideoPath)
	if err := h.db.WithContext(c.UserContext()).Model(&models.Course{}).
		Where("id = ?", course.ID).
		Update("video_path", path).Error; err != nil {
		return h.fail(c, op, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// GetVideoAccessURL returns a time-limited video link to a student who
// bought the course, or to its teacher.
func (h *Handler) GetVideoAccessURL(c *fiber.Ctx) error {
	const op = "courses.videoAccessUrl"
	userID, err := caller(c, op)
	if err != nil {
		return h.fail(c, op, err)
	}
	course, err := h.loadCourse(c, op, c.Params("courseId"))
	if err != nil {
		return h.fail(c, op, err)
	}
	if course.TeacherID != userID {
		var n int64
		if err := h.db.WithContext(c.UserContext()).Model(&models.Purchase{}).
			Where("id = ?", models.PurchaseID(userID, course.ID)).
			Count(&n).Error; err != nil {
			return h.fail(c, op, err)
		}
		if n == 0 {
			return h.fail(c, op, ledger.NewError(ledger.KindPermissionDenied, op, "You have not purchased this course."))
		}
	}
	if course.VideoPath == nil || strings.TrimSpace(*course.VideoPath) == "" {
		return h.fail(c, op, invalid(op, "Video path is required."))
	}
	if h.media == nil {
		return h.fail(c, op, ledger.NewError(ledger.KindFailedPrecondition, op, "Video storage is not configured."))
	}
	url, expires, err := h.media.SignedVideoURL(*course.VideoPath, storage.DefaultVideoURLTTL)
	if err != nil {
		return h.fail(c, op, err)
	}
	return c.JSON(fiber.Map{"url": url, "expiresAt": expires.UTC()})
}

// VideoUploadSignature lets a teacher's browser upload a video straight to
// the media store.
func (h *Handler) VideoUploadSignature(c *fiber.Ctx) error {
	const op = "courses.uploadSignature"
	if _, err := caller(c, op); err != nil {
		return h.fail(c, op, err)
	}
	if h.media == nil {
		return h.fail(c, op, ledger.NewError(ledger.KindFailedPrecondition, op, "Video storage is not configured."))
	}
	sig, err := h.media.UploadSignature()
	if err != nil {
		return h.fail(c, op, err)
	}
	return c.JSON(sig)
}

func (h *Handler) ListMyCourses(c *fiber.Ctx) error {
	const op = "courses.listMine"
	teacherID, err := caller(c, op)
	if err != nil {
		return h.fail(c, op, err)
	}
	var courses []models.Course
	if err := h.db.WithContext(c.UserContext()).
		Where("teacher_id = ?", teacherID).
		Order("created_at DESC").
		Find(&courses).Error; err != nil {
		return h.fail(c, op, err)
	}
	return c.JSON(fiber.Map{"courses": courses})
}

// GetUserCourses lists purchased courses for role=student (the default) and
// taught courses for role=teacher.
func (h *Handler) GetUserCourses(c *fiber.Ctx) error {
	const op = "courses.listForUser"
	userID, err := caller(c, op)
	if err != nil {
		return h.fail(c, op, err)
	}
	db := h.db.WithContext(c.UserContext())

	var courses []models.Course
	purchased := false
	switch c.Query("role", string(models.RoleStudent)) {
	case string(models.RoleTeacher):
		err = db.Where("teacher_id = ?", userID).Order("created_at DESC").Find(&courses).Error
	case string(models.RoleStudent):
		purchased = true
		err = db.Joins("JOIN purchases ON purchases.course_id = courses.id").
			Where("purchases.student_id = ?", userID).
			Order("purchases.purchased_at DESC").
			Find(&courses).Error
	default:
		return h.fail(c, op, invalid(op, "role must be student or teacher."))
	}
	if err != nil {
		return h.fail(c, op, err)
	}

	views := make([]CourseView, len(courses))
	for i := range courses {
		views[i] = CourseView{Course: courses[i], Purchased: purchased}
	}
	return c.JSON(fiber.Map{"courses": views})
}

// GetAllCourses pages through every course, newest first. lastVisible is the
// id of the last course of the previous page.
func (h *Handler) GetAllCourses(c *fiber.Ctx) error {
	const op = "courses.listAll"
	limit := utils.ClampLimit(c.QueryInt("limit", defaultPageSize), defaultPageSize, maxPageSize)
	db := h.db.WithContext(c.UserContext())

	q := db.Model(&models.Course{}).Order("created_at DESC").Order("id DESC").Limit(limit)
	if last := strings.TrimSpace(c.Query("lastVisible")); last != "" {
		var cursor models.Course
		res := db.Select("id", "created_at").Where("id = ?", last).Limit(1).Find(&cursor)
		if res.Error != nil {
			return h.fail(c, op, res.Error)
		}
		if res.RowsAffected > 0 {
			q = q.Where("created_at < ? OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
		}
	}

	var courses []models.Course
	if err := q.Find(&courses).Error; err != nil {
		return h.fail(c, op, err)
	}
	var lastVisible *string
	if len(courses) > 0 {
		lastVisible = &courses[len(courses)-1].ID
	}
	return c.JSON(fiber.Map{
		"courses":     courses,
		"lastVisible": lastVisible,
		"hasMore":     len(courses) == limit,
	})
}

// SearchCourses returns courses tagged with the query first, then courses
// whose title starts with it, up to 20 in total.
func (h *Handler) SearchCourses(c *fiber.Ctx) error {
	const op = "courses.search"
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		return h.fail(c, op, invalid(op, "A search query is required."))
	}
	db := h.db.WithContext(c.UserContext())

	var byTag []models.Course
	if err := tagFilter(db.Model(&models.Course{}), utils.NormalizeSkill(query)).
		Order("created_at DESC").
		Limit(searchLimit).
		Find(&byTag).Error; err != nil {
		return h.fail(c, op, err)
	}

	results := make([]CourseView, 0, searchLimit)
	seen := make(map[string]bool, searchLimit)
	for _, course := range byTag {
		seen[course.ID] = true
		results = append(results, CourseView{Course: course, MatchType: "skill"})
	}

	if len(results) < searchLimit {
		var byTitle []models.Course
		if err := db.Where("LOWER(title) LIKE ? ESCAPE '\\'", likePrefix(strings.ToLower(query))).
			Order("title").
			Limit(searchLimit).
			Find(&byTitle).Error; err != nil {
			return h.fail(c, op, err)
		}
		for _, course := range byTitle {
			if len(results) == searchLimit {
				break
			}
			if seen[course.ID] {
				continue
			}
			results = append(results, CourseView{Course: course, MatchType: "title"})
		}
	}
	return c.JSON(fiber.Map{"courses": results})
}

// tagFilter matches rows whose skill_tags JSON array holds tag.
func tagFilter(db *gorm.DB, tag string) *gorm.DB {
	if db.Dialector.Name() == "postgres" {
		raw, _ := json.Marshal([]string{tag})
		return db.Where("skill_tags @> ?::jsonb", string(raw))
	}
	return db.Where("EXISTS (SELECT 1 FROM json_each(CAST(courses.skill_tags AS TEXT)) WHERE json_each.value = ?)", tag)
}

func likePrefix(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s) + "%"
}

func (h *Handler) BuyCourse(c *fiber.Ctx) error {
	const op = "ledger.buyCourse"
	res, err := h.ledger.BuyCourse(c.UserContext(), middleware.CallerID(c), c.Params("courseId"))
	if err != nil {
		return h.fail(c, op, err)
	}
	return c.JSON(fiber.Map{"success": true, "purchaseId": res.PurchaseID, "price": res.Price, "coins": res.Coins})
}
