package model

type WikiTopic struct {
	PluginID int64  `json:"-" db:"plugin_id"`
	Name     string `json:"name" db:"name"`
	Title    string `json:"title" db:"title"`
	HTML     string `json:"html" db:"html"`
}

type Wiki struct {
	ID     int64                `json:"id"`
	Topics map[string]WikiTopic `json:"topics"`
}
