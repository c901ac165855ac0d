package store

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS nodes (
    node_id                 BIGINT PRIMARY KEY,
    long_name               TEXT,
    short_name              TEXT,
    mac_address             TEXT,
    hardware_model          BIGINT,
    role                    BIGINT,
    is_licensed             BOOLEAN,
    is_unmessagable         BOOLEAN,
    public_key              TEXT,
    firmware_version        TEXT,
    region                  BIGINT,
    modem_preset            BIGINT,
    has_default_channel     BOOLEAN,
    num_online_local_nodes  BIGINT,
    position_precision      BIGINT,
    latitude                DOUBLE PRECISION,
    longitude               DOUBLE PRECISION,
    altitude                BIGINT,
    position_updated_at     TIMESTAMPTZ,
    battery_level           BIGINT,
    voltage                 DOUBLE PRECISION,
    channel_utilization     DOUBLE PRECISION,
    air_util_tx             DOUBLE PRECISION,
    uptime_seconds          BIGINT,
    neighbours_updated_at   TIMESTAMPTZ,
    neighbour_broadcast_interval_secs BIGINT,
    mqtt_connection_state   TEXT,
    mqtt_connection_state_updated_at TIMESTAMPTZ,
    created_at              TIMESTAMPTZ NOT NULL,
    updated_at              TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_nodes_updated ON nodes(updated_at);

CREATE TABLE IF NOT EXISTS positions (
    id              BIGSERIAL PRIMARY KEY,
    node_id         BIGINT NOT NULL,
    to_node         BIGINT NOT NULL DEFAULT 0,
    packet_id       BIGINT NOT NULL DEFAULT 0,
    channel_id      TEXT NOT NULL DEFAULT '',
    gateway_id      TEXT NOT NULL DEFAULT '',
    latitude        DOUBLE PRECISION NOT NULL,
    longitude       DOUBLE PRECISION NOT NULL,
    altitude        BIGINT,
    ground_speed    BIGINT,
    ground_track    BIGINT,
    sats_in_view    BIGINT,
    precision_bits  BIGINT,
    position_time   BIGINT NOT NULL DEFAULT 0,
    created_at      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_positions_node ON positions(node_id, created_at);

CREATE TABLE IF NOT EXISTS text_messages (
    id          BIGSERIAL PRIMARY KEY,
    from_node   BIGINT NOT NULL,
    to_node     BIGINT NOT NULL,
    packet_id   BIGINT NOT NULL,
    channel     BIGINT NOT NULL DEFAULT 0,
    channel_id  TEXT NOT NULL DEFAULT '',
    gateway_id  TEXT NOT NULL DEFAULT '',
    text        TEXT NOT NULL,
    rx_time     BIGINT NOT NULL DEFAULT 0,
    rx_snr      DOUBLE PRECISION NOT NULL DEFAULT 0,
    rx_rssi     BIGINT NOT NULL DEFAULT 0,
    hop_limit   BIGINT NOT NULL DEFAULT 0,
    created_at  TIMESTAMPTZ NOT NULL,
    UNIQUE (from_node, packet_id)
);
CREATE INDEX IF NOT EXISTS idx_text_messages_created ON text_messages(created_at);

CREATE TABLE IF NOT EXISTS waypoints (
    waypoint_id     BIGINT PRIMARY KEY,
    from_node       BIGINT NOT NULL,
    to_node         BIGINT NOT NULL DEFAULT 0,
    channel_id      TEXT NOT NULL DEFAULT '',
    gateway_id      TEXT NOT NULL DEFAULT '',
    latitude        DOUBLE PRECISION,
    longitude       DOUBLE PRECISION,
    expire          BIGINT NOT NULL DEFAULT 0,
    locked_to       BIGINT NOT NULL DEFAULT 0,
    name            TEXT NOT NULL DEFAULT '',
    description     TEXT NOT NULL DEFAULT '',
    icon            BIGINT NOT NULL DEFAULT 0,
    created_at      TIMESTAMPTZ NOT NULL,
    updated_at      TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS neighbour_edges (
    node_id                     BIGINT NOT NULL,
    neighbour_node_id           BIGINT NOT NULL,
    snr                         DOUBLE PRECISION NOT NULL DEFAULT 0,
    last_rx_time                BIGINT NOT NULL DEFAULT 0,
    broadcast_interval_secs     BIGINT NOT NULL DEFAULT 0,
    created_at                  TIMESTAMPTZ NOT NULL,
    updated_at                  TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (node_id, neighbour_node_id)
);

CREATE TABLE IF NOT EXISTS traceroutes (
    id              BIGSERIAL PRIMARY KEY,
    from_node       BIGINT NOT NULL,
    to_node         BIGINT NOT NULL,
    packet_id       BIGINT NOT NULL DEFAULT 0,
    request_id      BIGINT NOT NULL DEFAULT 0,
    want_response   BOOLEAN NOT NULL DEFAULT FALSE,
    channel_id      TEXT NOT NULL DEFAULT '',
    gateway_id      TEXT NOT NULL DEFAULT '',
    route           TEXT NOT NULL DEFAULT '[]',
    route_back      TEXT NOT NULL DEFAULT '[]',
    snr_towards     TEXT NOT NULL DEFAULT '[]',
    snr_back        TEXT NOT NULL DEFAULT '[]',
    rx_time         BIGINT NOT NULL DEFAULT 0,
    created_at      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_traceroutes_created ON traceroutes(created_at);

CREATE TABLE IF NOT EXISTS map_reports (
    id                      BIGSERIAL PRIMARY KEY,
    node_id                 BIGINT NOT NULL,
    long_name               TEXT NOT NULL DEFAULT '',
    short_name              TEXT NOT NULL DEFAULT '',
    role                    BIGINT NOT NULL DEFAULT 0,
    hardware_model          BIGINT NOT NULL DEFAULT 0,
    firmware_version        TEXT NOT NULL DEFAULT '',
    region                  BIGINT NOT NULL DEFAULT 0,
    modem_preset            BIGINT NOT NULL DEFAULT 0,
    has_default_channel     BOOLEAN NOT NULL DEFAULT FALSE,
    latitude                DOUBLE PRECISION,
    longitude               DOUBLE PRECISION,
    altitude                BIGINT NOT NULL DEFAULT 0,
    position_precision      BIGINT NOT NULL DEFAULT 0,
    num_online_local_nodes  BIGINT NOT NULL DEFAULT 0,
    created_at              TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_map_reports_node ON map_reports(node_id, created_at);

CREATE TABLE IF NOT EXISTS service_envelopes (
    id          BIGSERIAL PRIMARY KEY,
    topic       TEXT NOT NULL,
    channel_id  TEXT NOT NULL DEFAULT '',
    gateway_id  TEXT NOT NULL DEFAULT '',
    packet_id   BIGINT NOT NULL DEFAULT 0,
    from_node   BIGINT NOT NULL DEFAULT 0,
    to_node     BIGINT NOT NULL DEFAULT 0,
    portnum     BIGINT,
    decrypted   BOOLEAN NOT NULL DEFAULT FALSE,
    payload     BYTEA NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_service_envelopes_created ON service_envelopes(created_at);

CREATE TABLE IF NOT EXISTS device_metrics (
    id                  BIGSERIAL PRIMARY KEY,
    node_id             BIGINT NOT NULL,
    battery_level       DOUBLE PRECISION,
    voltage             DOUBLE PRECISION,
    channel_utilization DOUBLE PRECISION,
    air_util_tx         DOUBLE PRECISION,
    uptime_seconds      DOUBLE PRECISION,
    created_at          TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_device_metrics_node ON device_metrics(node_id, created_at);

CREATE TABLE IF NOT EXISTS environment_metrics (
    id                  BIGSERIAL PRIMARY KEY,
    node_id             BIGINT NOT NULL,
    temperature         DOUBLE PRECISION,
    relative_humidity   DOUBLE PRECISION,
    barometric_pressure DOUBLE PRECISION,
    gas_resistance      DOUBLE PRECISION,
    voltage             DOUBLE PRECISION,
    "current"           DOUBLE PRECISION,
    iaq                 DOUBLE PRECISION,
    distance            DOUBLE PRECISION,
    lux                 DOUBLE PRECISION,
    white_lux           DOUBLE PRECISION,
    ir_lux              DOUBLE PRECISION,
    uv_lux              DOUBLE PRECISION,
    wind_direction      DOUBLE PRECISION,
    wind_speed          DOUBLE PRECISION,
    weight              DOUBLE PRECISION,
    wind_gust           DOUBLE PRECISION,
    wind_lull           DOUBLE PRECISION,
    radiation           DOUBLE PRECISION,
    rainfall_1h         DOUBLE PRECISION,
    rainfall_24h        DOUBLE PRECISION,
    created_at          TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_environment_metrics_node ON environment_metrics(node_id, created_at);

CREATE TABLE IF NOT EXISTS power_metrics (
    id          BIGSERIAL PRIMARY KEY,
    node_id     BIGINT NOT NULL,
    ch1_voltage DOUBLE PRECISION,
    ch1_current DOUBLE PRECISION,
    ch2_voltage DOUBLE PRECISION,
    ch2_current DOUBLE PRECISION,
    ch3_voltage DOUBLE PRECISION,
    ch3_current DOUBLE PRECISION,
    created_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_power_metrics_node ON power_metrics(node_id, created_at);

CREATE TABLE IF NOT EXISTS air_quality_metrics (
    id                  BIGSERIAL PRIMARY KEY,
    node_id             BIGINT NOT NULL,
    pm10_standard       DOUBLE PRECISION,
    pm25_standard       DOUBLE PRECISION,
    pm100_standard      DOUBLE PRECISION,
    pm10_environmental  DOUBLE PRECISION,
    pm25_environmental  DOUBLE PRECISION,
    pm100_environmental DOUBLE PRECISION,
    particles_03um      DOUBLE PRECISION,
    particles_05um      DOUBLE PRECISION,
    particles_10um      DOUBLE PRECISION,
    particles_25um      DOUBLE PRECISION,
    particles_50um      DOUBLE PRECISION,
    particles_100um     DOUBLE PRECISION,
    co2                 DOUBLE PRECISION,
    created_at          TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_air_quality_metrics_node ON air_quality_metrics(node_id, created_at);

CREATE TABLE IF NOT EXISTS outbox (
    id          BIGSERIAL PRIMARY KEY,
    job_id      TEXT NOT NULL,
    kind        TEXT NOT NULL,
    payload     BYTEA NOT NULL,
    retries     BIGINT NOT NULL DEFAULT 0,
    last_error  TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL,
    sent_at     TIMESTAMPTZ,
    failed_at   TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_outbox_pending ON outbox(sent_at, failed_at);

CREATE TABLE IF NOT EXISTS admin_users (
    id              BIGSERIAL PRIMARY KEY,
    username        TEXT NOT NULL UNIQUE,
    password_hash   TEXT NOT NULL,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`
