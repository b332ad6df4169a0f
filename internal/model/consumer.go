package model

// Consumer is a row of the consumers table. Every other entity is
// partitioned by its ID.
type Consumer struct {
	ID string
}
