package v1

import "time"

// Default column ids created for boards that do not supply their own.
const (
	ColumnTodo       = "todo"
	ColumnInProgress = "inprogress"
	ColumnDone       = "done"
)

// DefaultBoardName is used when a board is created without a name.
const DefaultBoardName = "My Board"

// Board is the top-level document: ordered columns plus the users tasks can
// be assigned to.
type Board struct {
	ID        string    `json:"id" bson:"_id" validate:"required"`
	Name      string    `json:"name" bson:"name" validate:"notblank"`
	Columns   []Column  `json:"columns" bson:"columns" validate:"dive"`
	Users     []User    `json:"users" bson:"users" validate:"dive"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Column is a fixed slot holding an ordered sequence of tasks. Task order is
// significant and never re-sorted.
type Column struct {
	ID    string `json:"id" bson:"id" validate:"required"`
	Title string `json:"title" bson:"title" validate:"notblank"`
	Tasks []Task `json:"tasks" bson:"tasks" validate:"dive"`
	Order int    `json:"order" bson:"order" validate:"min=0"`
}

// Task is a single work item.
type Task struct {
	ID          string    `json:"id" bson:"id" validate:"required"`
	Title       string    `json:"title" bson:"title" validate:"notblank"`
	Description string    `json:"description" bson:"description"`
	AssignedTo  *string   `json:"assignedTo" bson:"assignedTo"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" bson:"updatedAt"`
}

// User can be referenced by Task.AssignedTo.
type User struct {
	ID    string `json:"id" bson:"id" validate:"required"`
	Name  string `json:"name" bson:"name" validate:"notblank"`
	Email string `json:"email,omitempty" bson:"email,omitempty" validate:"omitempty,email"`
}

// DefaultColumns returns the three-column layout used when a board is
// created without columns.
func DefaultColumns() []Column {
	return []Column{
		{ID: ColumnTodo, Title: "To Do", Tasks: []Task{}, Order: 0},
		{ID: ColumnInProgress, Title: "In Progress", Tasks: []Task{}, Order: 1},
		{ID: ColumnDone, Title: "Done", Tasks: []Task{}, Order: 2},
	}
}

// Clone returns a deep copy of b. A nil board clones to nil.
func (b *Board) Clone() *Board {
	if b == nil {
		return nil
	}
	out := *b
	out.Columns = CloneColumns(b.Columns)
	out.Users = CloneUsers(b.Users)
	return &out
}

// CloneColumns deep copies columns and their tasks.
func CloneColumns(cols []Column) []Column {
	if cols == nil {
		return nil
	}
	out := make([]Column, len(cols))
	for i, c := range cols {
		out[i] = c
		out[i].Tasks = CloneTasks(c.Tasks)
	}
	return out
}

// CloneTasks deep copies tasks, including the assignee pointer.
func CloneTasks(tasks []Task) []Task {
	if tasks == nil {
		return nil
	}
	out := make([]Task, len(tasks))
	for i, t := range tasks {
		out[i] = t.Clone()
	}
	return out
}

// CloneUsers copies a user slice.
func CloneUsers(users []User) []User {
	if users == nil {
		return nil
	}
	out := make([]User, len(users))
	copy(out, users)
	return out
}

// Clone returns a copy of t that shares no memory with it.
func (t Task) Clone() Task {
	if t.AssignedTo != nil {
		a := *t.AssignedTo
		t.AssignedTo = &a
	}
	return t
}

// ColumnIndex returns the position of the column with id, or -1.
func (b *Board) ColumnIndex(id string) int {
	for i := range b.Columns {
		if b.Columns[i].ID == id {
			return i
		}
	}
	return -1
}

// Column returns a pointer into b.Columns for id, or nil.
func (b *Board) Column(id string) *Column {
	if i := b.ColumnIndex(id); i >= 0 {
		return &b.Columns[i]
	}
	return nil
}

// TaskIndex returns the position of the task with id in the column, or -1.
func (c *Column) TaskIndex(id string) int {
	for i := range c.Tasks {
		if c.Tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// FindTask scans every column and returns the task with id along with the
// id of the column holding it.
func (b *Board) FindTask(id string) (*Task, string, bool) {
	for ci := range b.Columns {
		col := &b.Columns[ci]
		if ti := col.TaskIndex(id); ti >= 0 {
			return &col.Tasks[ti], col.ID, true
		}
	}
	return nil, "", false
}

// HasUser reports whether a user with id belongs to the board.
func (b *Board) HasUser(id string) bool {
	for _, u := range b.Users {
		if u.ID == id {
			return true
		}
	}
	return false
}

// TaskCount returns the number of tasks across all columns.
func (b *Board) TaskCount() int {
	n := 0
	for _, c := range b.Columns {
		n += len(c.Tasks)
	}
	return n
}
