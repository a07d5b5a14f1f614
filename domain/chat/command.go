package chat

type Command interface {
	RoomID() RoomID
}

type PostMessageCommand struct {
	Room       RoomID
	SenderID   UserID
	Content    string
	Attachment *Attachment
}

func (p PostMessageCommand) RoomID() RoomID {
	return p.Room
}

type CreateRoomCommand struct {
	Name         *string
	IsPrivate    bool
	Participants []UserID
}

type SearchMessagesCommand struct {
	Room  RoomID
	Terms string
	// Limit caps the number of results below the server limit when positive
	Limit int
}

func (s SearchMessagesCommand) RoomID() RoomID {
	return s.Room
}
