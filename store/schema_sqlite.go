package store

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS nodes (
    node_id                 INTEGER PRIMARY KEY,
    long_name               TEXT,
    short_name              TEXT,
    mac_address             TEXT,
    hardware_model          INTEGER,
    role                    INTEGER,
    is_licensed             INTEGER,
    is_unmessagable         INTEGER,
    public_key              TEXT,
    firmware_version        TEXT,
    region                  INTEGER,
    modem_preset            INTEGER,
    has_default_channel     INTEGER,
    num_online_local_nodes  INTEGER,
    position_precision      INTEGER,
    latitude                REAL,
    longitude               REAL,
    altitude                INTEGER,
    position_updated_at     TEXT,
    battery_level           INTEGER,
    voltage                 REAL,
    channel_utilization     REAL,
    air_util_tx             REAL,
    uptime_seconds          INTEGER,
    neighbours_updated_at   TEXT,
    neighbour_broadcast_interval_secs INTEGER,
    mqtt_connection_state   TEXT,
    mqtt_connection_state_updated_at TEXT,
    created_at              TEXT NOT NULL,
    updated_at              TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_nodes_updated ON nodes(updated_at);

CREATE TABLE IF NOT EXISTS positions (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    node_id         INTEGER NOT NULL,
    to_node         INTEGER NOT NULL DEFAULT 0,
    packet_id       INTEGER NOT NULL DEFAULT 0,
    channel_id      TEXT NOT NULL DEFAULT '',
    gateway_id      TEXT NOT NULL DEFAULT '',
    latitude        REAL NOT NULL,
    longitude       REAL NOT NULL,
    altitude        INTEGER,
    ground_speed    INTEGER,
    ground_track    INTEGER,
    sats_in_view    INTEGER,
    precision_bits  INTEGER,
    position_time   INTEGER NOT NULL DEFAULT 0,
    created_at      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_positions_node ON positions(node_id, created_at);

CREATE TABLE IF NOT EXISTS text_messages (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    from_node   INTEGER NOT NULL,
    to_node     INTEGER NOT NULL,
    packet_id   INTEGER NOT NULL,
    channel     INTEGER NOT NULL DEFAULT 0,
    channel_id  TEXT NOT NULL DEFAULT '',
    gateway_id  TEXT NOT NULL DEFAULT '',
    text        TEXT NOT NULL,
    rx_time     INTEGER NOT NULL DEFAULT 0,
    rx_snr      REAL NOT NULL DEFAULT 0,
    rx_rssi     INTEGER NOT NULL DEFAULT 0,
    hop_limit   INTEGER NOT NULL DEFAULT 0,
    created_at  TEXT NOT NULL,
    UNIQUE (from_node, packet_id)
);
CREATE INDEX IF NOT EXISTS idx_text_messages_created ON text_messages(created_at);

CREATE TABLE IF NOT EXISTS waypoints (
    waypoint_id     INTEGER PRIMARY KEY,
    from_node       INTEGER NOT NULL,
    to_node         INTEGER NOT NULL DEFAULT 0,
    channel_id      TEXT NOT NULL DEFAULT '',
    gateway_id      TEXT NOT NULL DEFAULT '',
    latitude        REAL,
    longitude       REAL,
    expire          INTEGER NOT NULL DEFAULT 0,
    locked_to       INTEGER NOT NULL DEFAULT 0,
    name            TEXT NOT NULL DEFAULT '',
    description     TEXT NOT NULL DEFAULT '',
    icon            INTEGER NOT NULL DEFAULT 0,
    created_at      TEXT NOT NULL,
    updated_at      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS neighbour_edges (
    node_id                     INTEGER NOT NULL,
    neighbour_node_id           INTEGER NOT NULL,
    snr                         REAL NOT NULL DEFAULT 0,
    last_rx_time                INTEGER NOT NULL DEFAULT 0,
    broadcast_interval_secs     INTEGER NOT NULL DEFAULT 0,
    created_at                  TEXT NOT NULL,
    updated_at                  TEXT NOT NULL,
    PRIMARY KEY (node_id, neighbour_node_id)
);

CREATE TABLE IF NOT EXISTS traceroutes (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    from_node       INTEGER NOT NULL,
    to_node         INTEGER NOT NULL,
    packet_id       INTEGER NOT NULL DEFAULT 0,
    request_id      INTEGER NOT NULL DEFAULT 0,
    want_response   INTEGER NOT NULL DEFAULT 0,
    channel_id      TEXT NOT NULL DEFAULT '',
    gateway_id      TEXT NOT NULL DEFAULT '',
    route           TEXT NOT NULL DEFAULT '[]',
    route_back      TEXT NOT NULL DEFAULT '[]',
    snr_towards     TEXT NOT NULL DEFAULT '[]',
    snr_back        TEXT NOT NULL DEFAULT '[]',
    rx_time         INTEGER NOT NULL DEFAULT 0,
    created_at      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_traceroutes_created ON traceroutes(created_at);

CREATE TABLE IF NOT EXISTS map_reports (
    id                      INTEGER PRIMARY KEY AUTOINCREMENT,
    node_id                 INTEGER NOT NULL,
    long_name               TEXT NOT NULL DEFAULT '',
    short_name              TEXT NOT NULL DEFAULT '',
    role                    INTEGER NOT NULL DEFAULT 0,
    hardware_model          INTEGER NOT NULL DEFAULT 0,
    firmware_version        TEXT NOT NULL DEFAULT '',
    region                  INTEGER NOT NULL DEFAULT 0,
    modem_preset            INTEGER NOT NULL DEFAULT 0,
    has_default_channel     INTEGER NOT NULL DEFAULT 0,
    latitude                REAL,
    longitude               REAL,
    altitude                INTEGER NOT NULL DEFAULT 0,
    position_precision      INTEGER NOT NULL DEFAULT 0,
    num_online_local_nodes  INTEGER NOT NULL DEFAULT 0,
    created_at              TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_map_reports_node ON map_reports(node_id, created_at);

CREATE TABLE IF NOT EXISTS service_envelopes (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    topic       TEXT NOT NULL,
    channel_id  TEXT NOT NULL DEFAULT '',
    gateway_id  TEXT NOT NULL DEFAULT '',
    packet_id   INTEGER NOT NULL DEFAULT 0,
    from_node   INTEGER NOT NULL DEFAULT 0,
    to_node     INTEGER NOT NULL DEFAULT 0,
    portnum     INTEGER,
    decrypted   INTEGER NOT NULL DEFAULT 0,
    payload     BLOB NOT NULL,
    created_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_service_envelopes_created ON service_envelopes(created_at);

CREATE TABLE IF NOT EXISTS device_metrics (
    id                  INTEGER PRIMARY KEY AUTOINCREMENT,
    node_id             INTEGER NOT NULL,
    battery_level       REAL,
    voltage             REAL,
    channel_utilization REAL,
    air_util_tx         REAL,
    uptime_seconds      REAL,
    created_at          TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_device_metrics_node ON device_metrics(node_id, created_at);

CREATE TABLE IF NOT EXISTS environment_metrics (
    id                  INTEGER PRIMARY KEY AUTOINCREMENT,
    node_id             INTEGER NOT NULL,
    temperature         REAL,
    relative_humidity   REAL,
    barometric_pressure REAL,
    gas_resistance      REAL,
    voltage             REAL,
    "current"           REAL,
    iaq                 REAL,
    distance            REAL,
    lux                 REAL,
    white_lux           REAL,
    ir_lux              REAL,
    uv_lux              REAL,
    wind_direction      REAL,
    wind_speed          REAL,
    weight              REAL,
    wind_gust           REAL,
    wind_lull           REAL,
    radiation           REAL,
    rainfall_1h         REAL,
    rainfall_24h        REAL,
    created_at          TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_environment_metrics_node ON environment_metrics(node_id, created_at);

CREATE TABLE IF NOT EXISTS power_metrics (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    node_id     INTEGER NOT NULL,
    ch1_voltage REAL,
    ch1_current REAL,
    ch2_voltage REAL,
    ch2_current REAL,
    ch3_voltage REAL,
    ch3_current REAL,
    created_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_power_metrics_node ON power_metrics(node_id, created_at);

CREATE TABLE IF NOT EXISTS air_quality_metrics (
    id                  INTEGER PRIMARY KEY AUTOINCREMENT,
    node_id             INTEGER NOT NULL,
    pm10_standard       REAL,
    pm25_standard       REAL,
    pm100_standard      REAL,
    pm10_environmental  REAL,
    pm25_environmental  REAL,
    pm100_environmental REAL,
    particles_03um      REAL,
    particles_05um      REAL,
    particles_10um      REAL,
    particles_25um      REAL,
    particles_50um      REAL,
    particles_100um     REAL,
    co2                 REAL,
    created_at          TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_air_quality_metrics_node ON air_quality_metrics(node_id, created_at);

CREATE TABLE IF NOT EXISTS outbox (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    job_id      TEXT NOT NULL,
    kind        TEXT NOT NULL,
    payload     BLOB NOT NULL,
    retries     INTEGER NOT NULL DEFAULT 0,
    last_error  TEXT NOT NULL DEFAULT '',
    created_at  TEXT NOT NULL,
    sent_at     TEXT,
    failed_at   TEXT
);
CREATE INDEX IF NOT EXISTS idx_outbox_pending ON outbox(sent_at, failed_at);

CREATE TABLE IF NOT EXISTS admin_users (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    username        TEXT NOT NULL UNIQUE,
    password_hash   TEXT NOT NULL,
    created_at      TEXT NOT NULL DEFAULT (datetime('now'))
);
`
