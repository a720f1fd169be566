package configuration

import (
	"encoding/json"
	"os"
)

type MongoConfig struct {
	Uri                     string `json:"uri"`
	Database                string `json:"database"`
	UsersCollection         string `json:"usersCollection"`
	SessionsCollection      string `json:"sessionsCollection"`
	ConversationsCollection string `json:"conversationsCollection"`
	MessagesCollection      string `json:"messagesCollection"`
	NotificationsCollection string `json:"notificationsCollection"`
	GroupsCollection        string `json:"groupsCollection"`
	GroupMessagesCollection string `json:"groupMessagesCollection"`
	GroupRequestsCollection string `json:"groupRequestsCollection"`
}

type RedisConfig struct {
	// Addr empty means single-instance mode with the in-memory registry.
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type ServerConfig struct {
	AppPort        int      `json:"app_port"`
	SocketPort     int      `json:"socket_port"`
	AllowedOrigins []string `json:"allowed_origins"`
}

type Config struct {
	ChatDatabase MongoConfig  `json:"mongo"`
	Redis        RedisConfig  `json:"redis"`
	Server       ServerConfig `json:"server"`
}

func LoadConfig(config_path string) (*Config, error) {
	file, err := os.ReadFile(config_path)
	if err != nil {
		return nil, err
	}

	var config Config
	err = json.Unmarshal(file, &config)
	if err != nil {
		return nil, err
	}

	config.applyDefaults()
	return &config, nil
}

func (c *Config) applyDefaults() {
	m := &c.ChatDatabase
	if m.UsersCollection == "" {
		m.UsersCollection = "users"
	}
	if m.SessionsCollection == "" {
		m.SessionsCollection = "sessions"
	}
	if m.ConversationsCollection == "" {
		m.ConversationsCollection = "conversations"
	}
	if m.MessagesCollection == "" {
		m.MessagesCollection = "messages"
	}
	if m.NotificationsCollection == "" {
		m.NotificationsCollection = "notifications"
	}
	if m.GroupsCollection == "" {
		m.GroupsCollection = "groups"
	}
	if m.GroupMessagesCollection == "" {
		m.GroupMessagesCollection = "group_messages"
	}
	if m.GroupRequestsCollection == "" {
		m.GroupRequestsCollection = "group_requests"
	}
	if c.Server.AppPort == 0 {
		c.Server.AppPort = 8080
	}
	if c.Server.SocketPort == 0 {
		c.Server.SocketPort = 8081
	}
}
