package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"minimalapi/school/internal/student"
)

// studentService is the subset of *student.Service used by the HTTP handlers.
type studentService interface {
	List(ctx context.Context) ([]student.Student, error)
	Get(ctx context.Context, id int) (student.Student, error)
	BornAfter(ctx context.Context, date time.Time) ([]student.Student, error)
	Create(ctx context.Context, s student.Student) (student.Student, error)
	Update(ctx context.Context, id int, s student.Student) (student.Student, error)
	Delete(ctx context.Context, id int) error
	Now() time.Time
}

// ListStudents handles GET /.
//
//	@Summary	List all students
//	@Tags		students
//	@Produce	json
//	@Success	200	{array}		studentResponse
//	@Failure	500	{object}	errorResponse
//	@Router		/ [get]
func (h *Handler) ListStudents(c *gin.Context) {
	students, err := h.students.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponses(students, h.students.Now()))
}

// GetStudent handles GET /read/{id}.
//
//	@Summary	Read a student by id
//	@Tags		students
//	@Produce	json
//	@Param		id	path		int	true	"Student id"
//	@Success	200	{object}	studentResponse
//	@Failure	400	{object}	errorResponse
//	@Failure	404	{object}	errorResponse
//	@Router		/read/{id} [get]
func (h *Handler) GetStudent(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	s, err := h.students.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponse(s, h.students.Now()))
}

// BornAfter handles GET /read/born-after/{date}. Students born on the date
// itself are excluded; results are newest first.
//
//	@Summary	List students born after a date
//	@Tags		students
//	@Produce	json
//	@Param		date	path		string	true	"Date (YYYY-MM-DD)"
//	@Success	200		{array}		studentResponse
//	@Failure	400		{object}	errorResponse
//	@Router		/read/born-after/{date} [get]
func (h *Handler) BornAfter(c *gin.Context) {
	date, err := parseDate(c.Param("date"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	students, err := h.students.BornAfter(c.Request.Context(), date)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponses(students, h.students.Now()))
}

// CreateStudent handles POST /create.
//
//	@Summary	Register a student
//	@Tags		students
//	@Accept		json
//	@Produce	json
//	@Param		student	body		createStudentRequest	true	"Student"
//	@Success	200		{object}	studentResponse
//	@Failure	400		{object}	errorResponse
//	@Failure	409		{object}	errorResponse
//	@Router		/create [post]
func (h *Handler) CreateStudent(c *gin.Context) {
	var req createStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, bindingMessage(err))
		return
	}
	created, err := h.students.Create(c.Request.Context(), req.toStudent(req.ID))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponse(created, h.students.Now()))
}

// UpdateStudent handles PUT /update/{id}. The id in the body is ignored.
//
//	@Summary	Update a student
//	@Tags		students
//	@Accept		json
//	@Produce	json
//	@Param		id		path		int				true	"Student id"
//	@Param		student	body		updateStudentRequest	true	"Student"
//	@Success	200		{object}	studentResponse
//	@Failure	400		{object}	errorResponse
//	@Failure	404		{object}	errorResponse
//	@Router		/update/{id} [put]
func (h *Handler) UpdateStudent(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req updateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, bindingMessage(err))
		return
	}
	updated, err := h.students.Update(c.Request.Context(), id, req.toStudent(id))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponse(updated, h.students.Now()))
}

// DeleteStudent handles DELETE /delete/{id}.
//
//	@Summary	Delete a student
//	@Tags		students
//	@Param		id	path	int	true	"Student id"
//	@Success	200
//	@Failure	400	{object}	errorResponse
//	@Failure	404	{object}	errorResponse
//	@Router		/delete/{id} [delete]
func (h *Handler) DeleteStudent(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.students.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func pathID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid student id "+strconv.Quote(c.Param("id")))
		return 0, false
	}
	return id, true
}
